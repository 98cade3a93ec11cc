package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"dochelper/internal/edit"
	"dochelper/internal/llm"
)

const fakeTimeoutMarker = "[fake-timeout]"

// cannedTypos drive the fake client: any of these found in the submitted
// text comes back as a fix, so the apply flow works end to end offline.
var cannedTypos = map[string]string{
	"teh":      "the",
	"recieve":  "receive",
	"occured":  "occurred",
	"seperate": "separate",
}

// NewFakeClient returns a provider stand-in for development and tests. It
// answers every task deterministically from the request text alone.
func NewFakeClient() llm.Client {
	return &fakeClient{}
}

type fakeClient struct{}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	content := lastUserContent(req.Messages)
	if strings.Contains(content, fakeTimeoutMarker) {
		return nil, llm.ErrTimeout
	}

	var text string
	switch {
	case strings.HasPrefix(req.System, "You are a Professional Copy Editor."):
		text = fakeFixArray(content)
	case strings.HasPrefix(req.System, "You are a Professional Document Summarizer."):
		text = "**Main Topic**: A short document.\n\n**Key Points**: It exists. It was uploaded. It was summarized.\n\n**Conclusions**: Nothing further.\n\n**Target Audience**: Its author."
	default:
		fixes := fakeFixArray(content)
		text = fmt.Sprintf("Reviewed the document. Found %d issue(s).\n\n```json\n%s\n```", strings.Count(fixes, "search"), fixes)
	}

	return &llm.Completion{
		Text: text,
		Usage: llm.Usage{
			InputTokens:  len(content) / 4,
			OutputTokens: len(text) / 4,
		},
	}, nil
}

func fakeFixArray(content string) string {
	words := make([]string, 0, len(cannedTypos))
	for word := range cannedTypos {
		if strings.Contains(content, word) {
			words = append(words, word)
		}
	}
	sort.Strings(words)
	fixes := make([]edit.Fix, 0, len(words))
	for _, word := range words {
		fixes = append(fixes, edit.Fix{Search: word, Replace: cannedTypos[word]})
	}
	out, err := json.Marshal(fixes)
	if err != nil {
		return "[]"
	}
	return string(out)
}

func lastUserContent(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			return messages[i].Content
		}
	}
	return ""
}
