package contextmgr

import (
	"fmt"
	"os"
	"strings"
)

const summaryPlaceholder = "<summary>"

const defaultTemplate = `You are continuing an ongoing conversation.

<summary>`

const noSummaryText = "(no summary yet; this is the start of the conversation)"

// Template renders the system message a context window is prefixed
// with, substituting the thread's current summary text into a single
// <summary> placeholder.
type Template struct {
	raw string
}

// LoadTemplate resolves a template from a file path, falling back to
// an inline string, falling back to the package default. An empty
// path and empty inline both select the default.
func LoadTemplate(path, inline string) (*Template, error) {
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("contextmgr: read summary prompt template %q: %w", path, err)
		}
		return &Template{raw: string(data)}, nil
	}
	if strings.TrimSpace(inline) != "" {
		return &Template{raw: inline}, nil
	}
	return &Template{raw: defaultTemplate}, nil
}

// Render substitutes summaryText for the <summary> placeholder. An
// empty summaryText renders the no-summary-yet placeholder instead of
// an empty string, so the prompt never reads as truncated.
func (t *Template) Render(summaryText string) string {
	if summaryText == "" {
		summaryText = noSummaryText
	}
	return strings.ReplaceAll(t.raw, summaryPlaceholder, summaryText)
}
