package cache

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/familyscout/familyscout/internal/domain"
)

// normalizedCriteria has a fixed field order so the serialized key is
// deterministic for logically identical searches.
type normalizedCriteria struct {
	City         string `json:"city"`
	KidsAges     string `json:"kidsAges"`
	Availability string `json:"availability"`
	MaxDistance  string `json:"maxDistance"`
	Preferences  string `json:"preferences"`
	EventTypes   string `json:"eventTypes"`
}

// Key derives the cache fingerprint for a search. Criteria that differ only
// in letter case, surrounding whitespace, or event-type order map to the same
// key; any semantic difference yields a different key.
func Key(c domain.SearchCriteria) string {
	types := make([]string, 0, len(c.EventTypes))
	for _, t := range c.EventTypes {
		types = append(types, string(t))
	}
	slices.Sort(types)

	norm := normalizedCriteria{
		City:         strings.ToLower(strings.TrimSpace(c.City)),
		KidsAges:     strings.ToLower(strings.TrimSpace(c.KidsAges)),
		Availability: strings.ToLower(strings.TrimSpace(c.Availability)),
		MaxDistance:  strings.TrimSpace(c.MaxDistance),
		Preferences:  strings.ToLower(strings.TrimSpace(c.Preferences)),
		EventTypes:   strings.Join(types, ","),
	}

	// Marshaling a struct writes fields in declaration order, so the key is
	// stable across processes.
	b, _ := json.Marshal(norm)
	return string(b)
}
