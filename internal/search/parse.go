package search

import (
	"encoding/json"
	"strings"

	"github.com/familyscout/familyscout/internal/api/anthropic"
	"github.com/familyscout/familyscout/internal/domain"
)

// extractActivities pulls the activity array out of the response content.
// Text blocks are concatenated in response order; the JSON array is taken as
// the greedy span from the first '[' to the last ']'. The whole batch is
// rejected on the first invalid record.
func extractActivities(content []anthropic.ResponseContent) ([]domain.RawActivity, error) {
	var parts []string
	for _, block := range content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, domain.ErrNoTextContent
	}

	text := strings.Join(parts, "\n")

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end < start {
		return nil, domain.ErrNoJSONFound
	}

	var activities []domain.RawActivity
	if err := json.Unmarshal([]byte(text[start:end+1]), &activities); err != nil {
		return nil, &domain.MalformedJSONError{Err: err}
	}

	if len(activities) == 0 {
		return nil, domain.ErrEmptyActivities
	}

	for i, activity := range activities {
		if field, ok := missingField(activity); ok {
			return nil, &domain.InvalidActivityError{Index: i, Field: field}
		}
	}

	return activities, nil
}

func missingField(a domain.RawActivity) (string, bool) {
	switch {
	case a.Name == "":
		return "name", true
	case a.Emoji == "":
		return "emoji", true
	case a.Website == "":
		return "website", true
	case a.Address == "":
		return "address", true
	case a.Description == "":
		return "description", true
	}
	return "", false
}
