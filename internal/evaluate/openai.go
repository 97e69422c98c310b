// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/ticket-grader/pkg/types"
)

// openaiAPIURL is the OpenAI Responses API endpoint. Package-level var for
// test substitution.
var openaiAPIURL = "https://api.openai.com/v1/responses"

// scoreResultSchema constrains the structured output to the rubric's shape.
// The integer bounds are enforced again by ScoreResult.Validate; a value the
// model sneaks past the schema is still rejected.
var scoreResultSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"content_score": {"type": "integer", "minimum": 1, "maximum": 5},
		"content_explanation": {"type": "string"},
		"format_score": {"type": "integer", "minimum": 1, "maximum": 5},
		"format_explanation": {"type": "string"}
	},
	"required": ["content_score", "content_explanation", "format_score", "format_explanation"],
	"additionalProperties": false
}`)

// OpenAIBackend scores ticket replies by calling the OpenAI Responses API
// with the rubric instructions and a structured-output schema. Sampling is
// pinned to temperature 0 so repeated evaluations of the same ticket are
// reproducible.
type OpenAIBackend struct {
	APIKey          string
	Model           string
	ReasoningEffort string
	Client          *http.Client
}

// openaiRequest is the request body for the Responses API.
type openaiRequest struct {
	Model        string           `json:"model"`
	Instructions string           `json:"instructions"`
	Input        []openaiMessage  `json:"input"`
	Temperature  float64          `json:"temperature"`
	Text         openaiText       `json:"text"`
	Reasoning    *openaiReasoning `json:"reasoning,omitempty"`
}

// openaiMessage is a single input message in the Responses API conversation.
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiText selects the structured-output format.
type openaiText struct {
	Format openaiFormat `json:"format"`
}

// openaiFormat names the JSON schema the model must produce.
type openaiFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

// openaiReasoning carries the optional reasoning-effort tuning parameter.
type openaiReasoning struct {
	Effort string `json:"effort"`
}

// openaiResponse is the subset of the Responses API reply we consume.
type openaiResponse struct {
	Output []openaiOutput `json:"output"`
}

// openaiOutput is one output item; scoring calls produce a single message.
type openaiOutput struct {
	Type    string          `json:"type"`
	Content []openaiContent `json:"content"`
}

// openaiContent is a content block within an output message.
type openaiContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Score sends one ticket to the model and parses the structured result.
// Connection failures and non-2xx statuses come back as TransientError;
// an empty or unparseable payload is terminal.
func (b *OpenAIBackend) Score(ctx context.Context, t types.Ticket) (types.ScoreResult, error) {
	prompt, err := renderUserPrompt(t)
	if err != nil {
		return types.ScoreResult{}, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := openaiRequest{
		Model:        b.Model,
		Instructions: systemPrompt,
		Input: []openaiMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		Text: openaiText{
			Format: openaiFormat{
				Type:   "json_schema",
				Name:   "score_result",
				Schema: scoreResultSchema,
				Strict: true,
			},
		},
	}
	if b.ReasoningEffort != "" {
		reqBody.Reasoning = &openaiReasoning{Effort: b.ReasoningEffort}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return types.ScoreResult{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return types.ScoreResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.APIKey)

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return types.ScoreResult{}, &TransientError{Err: fmt.Errorf("calling OpenAI API: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.ScoreResult{}, &TransientError{
			Err: fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(body)),
		}
	}

	var oResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return types.ScoreResult{}, fmt.Errorf("decoding OpenAI response: %w", err)
	}

	text := outputText(oResp)
	if text == "" {
		return types.ScoreResult{}, fmt.Errorf("OpenAI API returned empty output")
	}

	var result types.ScoreResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return types.ScoreResult{}, fmt.Errorf("parsing score result JSON: %w", err)
	}

	return result, nil
}

// outputText returns the first output_text block from the response, or ""
// when the model produced none.
func outputText(resp openaiResponse) string {
	for _, out := range resp.Output {
		if out.Type != "message" {
			continue
		}
		for _, block := range out.Content {
			if block.Type == "output_text" && block.Text != "" {
				return block.Text
			}
		}
	}
	return ""
}
