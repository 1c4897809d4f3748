// Package format maps validated activity records into the user-facing shape:
// a 1-based sequence id plus derived navigation links. It is a pure mapping
// with no failure modes; input is assumed already validated.
package format

import (
	"fmt"
	"net/url"

	"github.com/familyscout/familyscout/internal/domain"
)

// Activities formats raw records in input order. Ids are 1-based positions;
// the model's ranking is preserved.
func Activities(raw []domain.RawActivity, originCity string) []domain.FormattedActivity {
	formatted := make([]domain.FormattedActivity, 0, len(raw))
	for i, activity := range raw {
		formatted = append(formatted, domain.FormattedActivity{
			ID:               i + 1,
			Name:             activity.Name,
			Emoji:            activity.Emoji,
			Website:          activity.Website,
			GoogleSearchLink: googleSearchLink(activity.Name, originCity),
			Address:          activity.Address,
			GoogleMapsLink:   googleMapsLink(originCity, activity.Address),
			AppleMapsLink:    appleMapsLink(originCity, activity.Address),
			Description:      activity.Description,
			EventDate:        activity.EventDate,
			EventType:        activity.EventType,
		})
	}
	return formatted
}

func googleMapsLink(origin, destination string) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&origin=%s&destination=%s",
		url.QueryEscape(origin), url.QueryEscape(destination))
}

func appleMapsLink(origin, destination string) string {
	return fmt.Sprintf("https://maps.apple.com/?daddr=%s&saddr=%s",
		url.QueryEscape(destination), url.QueryEscape(origin))
}

func googleSearchLink(name, city string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(name+" "+city)
}
