package evaluate

import (
	"strings"
	"testing"

	"github.com/pdiddy/ticket-grader/pkg/types"
)

func TestRenderUserPrompt(t *testing.T) {
	prompt, err := renderUserPrompt(types.Ticket{
		Request: "My order #1234 is late",
		Reply:   "It will arrive tomorrow.",
	})
	if err != nil {
		t.Fatalf("renderUserPrompt: %v", err)
	}

	for _, want := range []string{
		"## Customer Ticket",
		"My order #1234 is late",
		"## AI-Generated Reply",
		"It will arrive tomorrow.",
		"scoring rubric",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSystemPromptCoversRubric(t *testing.T) {
	// The rubric must describe both dimensions and the response schema.
	for _, want := range []string{
		"Content Score",
		"Format Score",
		"content_score",
		"content_explanation",
		"format_score",
		"format_explanation",
	} {
		if !strings.Contains(systemPrompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}
