// Package domain holds the core types and canonical errors shared across the
// search service: the validated search criteria, the activity records parsed
// from the model response, and the formatted records returned to clients.
package domain

// EventType categorizes an activity or event.
type EventType string

const (
	EventTypeSeasonal   EventType = "seasonal"   // holiday events, seasonal festivals
	EventTypeExhibition EventType = "exhibition" // museum exhibits, art shows
	EventTypeShow       EventType = "show"       // performances, concerts, theater
	EventTypeClass      EventType = "class"      // workshops, classes, camps
	EventTypePermanent  EventType = "permanent"  // regular attractions, ongoing activities
)

// EventTypes lists every valid event type.
var EventTypes = []EventType{
	EventTypeSeasonal,
	EventTypeExhibition,
	EventTypeShow,
	EventTypeClass,
	EventTypePermanent,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SearchCriteria is a validated, sanitized search request.
//
// KidsAges and Availability are free-form by design: a single age ("5"), a
// comma list ("5, 8"), or a dash range ("3-7") for ages, and a natural-language
// time window ("Saturday afternoon") for availability. MaxDistance keeps its
// string representation since it is embedded verbatim in the prompt.
type SearchCriteria struct {
	City         string
	KidsAges     string
	Availability string
	MaxDistance  string
	Preferences  string
	EventTypes   []EventType
}

// RawActivity is a single activity record as returned by the model.
// The five string fields are required; EventDate and EventType are optional.
type RawActivity struct {
	Name        string    `json:"name"`
	Emoji       string    `json:"emoji"`
	Website     string    `json:"website"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	EventDate   string    `json:"eventDate,omitempty"`
	EventType   EventType `json:"eventType,omitempty"`
}

// FormattedActivity is a RawActivity enriched with a 1-based sequence id and
// derived navigation links. Instances are immutable once created.
type FormattedActivity struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	Emoji            string    `json:"emoji"`
	Website          string    `json:"website"`
	GoogleSearchLink string    `json:"googleSearchLink"`
	Address          string    `json:"address"`
	GoogleMapsLink   string    `json:"googleMapsLink"`
	AppleMapsLink    string    `json:"appleMapsLink"`
	Description      string    `json:"description"`
	EventDate        string    `json:"eventDate,omitempty"`
	EventType        EventType `json:"eventType,omitempty"`
}
