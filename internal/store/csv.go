// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store reads tickets from CSV files and writes evaluated
// results back out.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/ticket-grader/pkg/types"
)

const (
	colRequest = "request"
	colReply   = "reply"
)

// outputColumns is the fixed output layout. Downstream consumers parse
// positionally, so the order is part of the contract.
var outputColumns = []string{
	"request",
	"reply",
	"content_score",
	"content_explanation",
	"format_score",
	"format_explanation",
}

// ReadTickets loads and validates tickets from a CSV file. A missing
// file, an empty file, or a header lacking the request/reply columns is
// a fatal error. Rows whose request or reply is empty after trimming
// are skipped with a warning on w rather than aborting the run.
func ReadTickets(path string, w io.Writer) ([]types.Ticket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input file %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty CSV file: %s", path)
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	reqIdx, replyIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case colRequest:
			reqIdx = i
		case colReply:
			replyIdx = i
		}
	}
	if reqIdx < 0 || replyIdx < 0 {
		var missing []string
		if reqIdx < 0 {
			missing = append(missing, colRequest)
		}
		if replyIdx < 0 {
			missing = append(missing, colReply)
		}
		return nil, fmt.Errorf("missing required columns in %s: %s", path, strings.Join(missing, ", "))
	}

	var tickets []types.Ticket
	for rowNum := 2; ; rowNum++ { // row 1 is the header
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", rowNum, err)
		}
		if reqIdx >= len(record) || replyIdx >= len(record) {
			fmt.Fprintf(w, "warning: skipping row %d: missing fields\n", rowNum)
			continue
		}

		ticket, err := types.NewTicket(record[reqIdx], record[replyIdx])
		if err != nil {
			fmt.Fprintf(w, "warning: skipping row %d: %v\n", rowNum, err)
			continue
		}
		tickets = append(tickets, ticket)
	}

	if len(tickets) == 0 {
		return nil, fmt.Errorf("no valid tickets found in %s", path)
	}

	return tickets, nil
}

// WriteEvaluated writes evaluated tickets to a CSV file in the fixed
// six-column layout.
func WriteEvaluated(tickets []types.EvaluatedTicket, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(outputColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, t := range tickets {
		row := []string{
			t.Request,
			t.Reply,
			strconv.Itoa(t.ContentScore),
			t.ContentExplanation,
			strconv.Itoa(t.FormatScore),
			t.FormatExplanation,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing CSV output: %w", err)
	}
	return nil
}
