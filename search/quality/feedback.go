package quality

import "github.com/hrygo/citypulse/search/rank"

// Suggestion is one tappable filter chip offered to the user.
type Suggestion struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Feedback is the zero/low-result helper payload.
type Feedback struct {
	Message     string       `json:"message,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// BuildFeedback sizes up to four suggestion chips by how many of the
// candidates each filter would retain. On an empty list it returns the
// broaden-your-search helper text.
func BuildFeedback(results []rank.Ranked) Feedback {
	if len(results) == 0 {
		return Feedback{
			Message: "No results found. Try a broader search, a larger radius, or a different time.",
		}
	}

	budget, walking, open, topRated := 0, 0, 0, 0
	for _, r := range results {
		if r.Place != nil {
			if r.Place.PriceLevel != nil && *r.Place.PriceLevel <= 2 {
				budget++
			}
			if r.Place.OpenNow != nil && *r.Place.OpenNow {
				open++
			}
			if r.Place.Rating != nil && *r.Place.Rating >= 4.5 {
				topRated++
			}
		}
		if r.Event != nil && r.Event.IsFree != nil && *r.Event.IsFree {
			budget++
		}
		if r.DistanceMeters > 0 && r.DistanceMeters <= 800 {
			walking++
		}
	}

	var chips []Suggestion
	add := func(label string, count int) {
		if count > 0 && len(chips) < 4 {
			chips = append(chips, Suggestion{Label: label, Count: count})
		}
	}
	add("Budget options", budget)
	add("Walking distance", walking)
	add("Open now", open)
	add("Highly rated (4.5+)", topRated)
	return Feedback{Suggestions: chips}
}
