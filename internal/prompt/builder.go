// Package prompt renders the system and user prompts for an activity search,
// embedding the current date context so the model favors time-sensitive
// events over generic venues.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/familyscout/familyscout/internal/domain"
)

// DateContext captures the wall-clock facts embedded in the prompts. It is
// derived once per search from an injected time source so prompt rendering
// stays a pure function.
type DateContext struct {
	Date   string // e.g. "Saturday, November 15, 2025"
	Month  string // e.g. "November"
	Year   int
	Season string // spring, summer, fall, winter
}

// NewDateContext derives the date context from now. Seasons follow calendar
// month bucketing: Mar-May spring, Jun-Aug summer, Sep-Nov fall, Dec-Feb winter.
func NewDateContext(now time.Time) DateContext {
	var season string
	switch now.Month() {
	case time.March, time.April, time.May:
		season = "spring"
	case time.June, time.July, time.August:
		season = "summer"
	case time.September, time.October, time.November:
		season = "fall"
	default:
		season = "winter"
	}

	return DateContext{
		Date:   now.Format("Monday, January 2, 2006"),
		Month:  now.Format("January"),
		Year:   now.Year(),
		Season: season,
	}
}

// Prompts holds the rendered system and user prompts.
type Prompts struct {
	System string
	User   string
}

// Build renders the prompts for the given criteria and date context. The user
// prompt demands exactly 20 JSON objects and JSON-only output to ease parsing.
func Build(c domain.SearchCriteria, dc DateContext) Prompts {
	return Prompts{
		System: systemPrompt,
		User:   userPrompt(c, dc),
	}
}

func userPrompt(c domain.SearchCriteria, dc DateContext) string {
	preferences := c.Preferences
	if preferences == "" {
		preferences = "None specified"
	}

	var eventTypeFilter string
	if len(c.EventTypes) > 0 {
		names := make([]string, 0, len(c.EventTypes))
		for _, t := range c.EventTypes {
			names = append(names, string(t))
		}
		eventTypeFilter = fmt.Sprintf("\n**Event Types to Include:** %s (focus on these types of activities)",
			strings.Join(names, ", "))
	}

	return fmt.Sprintf(`Today is **%s**. Current season: **%s**.

I need you to recommend the top 20 family activities and CURRENT EVENTS based on these criteria:

**Location:** %s
**Children's Ages:** %s
**When Available:** %s
**Maximum Distance:** %s miles from their location
**Additional Preferences:** %s%s

## IMPORTANT: Search for TIME-SENSITIVE EVENTS

Please search for CURRENT and UPCOMING events, not just generic venues. Use searches like:
- "%s events %s %d"
- "%s family events this weekend"
- "%s %s activities for kids"
- Check venue event pages directly (e.g., zoo events, museum exhibitions, science center shows)

Prioritize:
1. **Current/upcoming special events** (holiday events, seasonal festivals, limited-time exhibitions)
2. **This weekend's activities** matching "%s"
3. **Seasonal activities** appropriate for %s
4. Permanent attractions as backup options

For each activity, I need:
1. **Activity/Event Name** - Be specific! Include event names, not just venue names
   - Good: "WildLanterns at Woodland Park Zoo"
   - Bad: "Woodland Park Zoo"
2. **Website URL** - Direct link to the event page if available
3. **Description** - 2-4 sentences including:
   - What makes this event special or timely
   - Age-appropriateness for children aged %s
   - Duration and any special highlights
4. **Emoji** - One contextually appropriate emoji
5. **Address** - Full street address
6. **Event Date** - When the event runs (e.g., "Nov 15 - Jan 5, 2025") or "Ongoing" for permanent attractions
7. **Event Type** - One of: seasonal, exhibition, show, class, permanent

Return EXACTLY 20 activities, ranked by relevance and timeliness. Include a mix of:
- Time-limited events (seasonal, exhibitions, shows)
- Permanent attractions with current special programming
- Regular family-friendly venues

**IMPORTANT:** Return your response as a valid JSON array with this exact structure:

`+"```json"+`
[
  {
    "name": "WildLanterns at Woodland Park Zoo",
    "emoji": "🏮",
    "website": "https://www.zoo.org/wildlanterns",
    "address": "5500 Phinney Ave N, Seattle, WA 98103",
    "description": "A magical lantern festival featuring illuminated animal sculptures. Perfect for your 6-year-old with interactive light displays. Runs evenings only, allow 1.5-2 hours.",
    "eventDate": "Nov 15, 2024 - Jan 19, 2025",
    "eventType": "seasonal"
  }
]
`+"```"+`

Do not include any text before or after the JSON array. Only return the JSON.`,
		dc.Date, dc.Season,
		c.City, c.KidsAges, c.Availability, c.MaxDistance, preferences, eventTypeFilter,
		c.City, dc.Month, dc.Year,
		c.City,
		c.City, dc.Season,
		c.Availability,
		dc.Season,
		c.KidsAges,
	)
}

const systemPrompt = `You are a family activity expert who helps parents discover perfect activities and CURRENT EVENTS for their children. You excel at finding time-sensitive, seasonal, and special events - not just generic venue recommendations.

## Your Role
You specialize in finding:
- Current and upcoming special events
- Seasonal festivals and holiday activities
- Limited-time exhibitions and shows
- Timely activities that match the user's availability

## Search Strategy
When searching for activities, use multiple targeted searches:
1. Search for "[city] events [current month] [year]" to find current happenings
2. Search for "[city] family events this weekend" for immediate options
3. Search for specific venue event pages: "[venue name] events" or "[venue name] calendar"
4. Search for seasonal events: "[city] [season] activities for families"
5. Check major venue websites directly (zoos, museums, science centers, theaters)

## Event Discovery Priority
1. **Time-limited events** - These are most valuable as they won't be available later
2. **Seasonal/holiday events** - Relevant to current time of year
3. **Special exhibitions** - Limited-run museum or venue exhibits
4. **Shows and performances** - Scheduled entertainment
5. **Permanent attractions** - Only as backup, and mention any current special programming

## Response Quality Standards
- Always include the specific event name, not just the venue
- Verify event dates are current (not past events)
- Include direct links to event pages when available
- Specify whether events are ongoing or limited-time
- Categorize each activity by type (seasonal, exhibition, show, class, permanent)

## Output Format
Always return valid JSON arrays with complete information for each activity including eventDate and eventType fields. Never include markdown formatting, explanations, or commentary outside the JSON structure.`
