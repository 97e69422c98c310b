// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ScoreMin and ScoreMax bound the rubric's rating scale.
const (
	ScoreMin = 1
	ScoreMax = 5
)

// Ticket represents a customer support ticket and its AI-generated reply.
type Ticket struct {
	// Request is the customer's support message.
	Request string `json:"request" yaml:"request"`

	// Reply is the AI-generated response under evaluation.
	Reply string `json:"reply" yaml:"reply"`
}

// NewTicket trims both fields and rejects empty values. Tickets are
// immutable once constructed.
func NewTicket(request, reply string) (Ticket, error) {
	request = strings.TrimSpace(request)
	reply = strings.TrimSpace(reply)
	if request == "" {
		return Ticket{}, fmt.Errorf("ticket request is empty")
	}
	if reply == "" {
		return Ticket{}, fmt.Errorf("ticket reply is empty")
	}
	return Ticket{Request: request, Reply: reply}, nil
}

// ScoreResult is the model's assessment of one reply on the content and
// format dimensions. Scores use a 1-5 scale where 1 is inadequate and 5
// is excellent.
type ScoreResult struct {
	// ContentScore rates relevance, correctness, and completeness.
	ContentScore int `json:"content_score" yaml:"content_score"`

	// ContentExplanation justifies the content score in 1-2 sentences.
	ContentExplanation string `json:"content_explanation" yaml:"content_explanation"`

	// FormatScore rates clarity, structure, and grammar.
	FormatScore int `json:"format_score" yaml:"format_score"`

	// FormatExplanation justifies the format score in 1-2 sentences.
	FormatExplanation string `json:"format_explanation" yaml:"format_explanation"`
}

// Validate checks that both scores fall inside the rubric range. A score
// outside [ScoreMin, ScoreMax] violates the backend contract; it is
// rejected, never clamped.
func (r ScoreResult) Validate() error {
	if r.ContentScore < ScoreMin || r.ContentScore > ScoreMax {
		return fmt.Errorf("content_score %d out of range [%d,%d]", r.ContentScore, ScoreMin, ScoreMax)
	}
	if r.FormatScore < ScoreMin || r.FormatScore > ScoreMax {
		return fmt.Errorf("format_score %d out of range [%d,%d]", r.FormatScore, ScoreMin, ScoreMax)
	}
	return nil
}

// EvaluatedTicket combines a ticket with its score result, flattened for
// output. One exists per successfully scored ticket; tickets whose
// evaluation failed have no corresponding EvaluatedTicket.
type EvaluatedTicket struct {
	Request            string `json:"request" yaml:"request"`
	Reply              string `json:"reply" yaml:"reply"`
	ContentScore       int    `json:"content_score" yaml:"content_score"`
	ContentExplanation string `json:"content_explanation" yaml:"content_explanation"`
	FormatScore        int    `json:"format_score" yaml:"format_score"`
	FormatExplanation  string `json:"format_explanation" yaml:"format_explanation"`
}

// Evaluated merges a ticket with its score result.
func Evaluated(t Ticket, r ScoreResult) EvaluatedTicket {
	return EvaluatedTicket{
		Request:            t.Request,
		Reply:              t.Reply,
		ContentScore:       r.ContentScore,
		ContentExplanation: r.ContentExplanation,
		FormatScore:        r.FormatScore,
		FormatExplanation:  r.FormatExplanation,
	}
}
