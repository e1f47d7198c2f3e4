package rank

import "github.com/hrygo/citypulse/search/intent"

// Weights are the per-factor multipliers. They always sum to 1 after
// normalization.
type Weights struct {
	Proximity    float64 `json:"proximity"`
	Rating       float64 `json:"rating"`
	Popularity   float64 `json:"popularity"`
	Novelty      float64 `json:"novelty"`
	Temporal     float64 `json:"temporal"`
	IntentMatch  float64 `json:"intentMatch"`
	Vibrancy     float64 `json:"vibrancy"`
	Independence float64 `json:"independence"`
}

// BaseWeights is the starting profile before adaptive deltas.
func BaseWeights() Weights {
	return Weights{
		Proximity:    0.30,
		Rating:       0.15,
		Popularity:   0.10,
		Novelty:      0.05,
		Temporal:     0.15,
		IntentMatch:  0.20,
		Vibrancy:     0.03,
		Independence: 0.02,
	}
}

// AdaptWeights applies intent, urgency, mood, and budget deltas to the base
// profile and renormalizes so the weights sum to 1.
func AdaptWeights(ctx Context) Weights {
	w := BaseWeights()
	si := ctx.Intent
	if si == nil {
		return w
	}

	if si.Kind == intent.KindEvent {
		w.Temporal += 0.12
		w.Proximity -= 0.08
	}

	var urgency intent.Urgency
	var mood string
	var budget intent.BudgetLevel
	if si.Sub != nil {
		urgency = si.Sub.Urgency
		mood = si.Sub.Mood
		budget = si.Sub.Budget
	}

	if urgency == intent.UrgencyImmediate {
		w.Temporal += 0.10
		w.Rating -= 0.05
	}

	switch mood {
	case "romantic":
		w.Rating += 0.08
		w.Popularity -= 0.05
	case "adventurous":
		w.Novelty += 0.12
		w.Popularity -= 0.07
		w.Independence += 0.03
	case "relaxed":
		w.Vibrancy -= 0.02
		w.Rating += 0.04
	case "energetic":
		w.Vibrancy += 0.05
		w.Temporal += 0.03
	}

	if budget == intent.BudgetUpscale {
		w.Rating += 0.08
	}

	return w.normalize()
}

// normalize floors negatives at a small positive value and scales to sum 1.
func (w Weights) normalize() Weights {
	const floor = 0.005
	vals := []*float64{
		&w.Proximity, &w.Rating, &w.Popularity, &w.Novelty,
		&w.Temporal, &w.IntentMatch, &w.Vibrancy, &w.Independence,
	}
	sum := 0.0
	for _, v := range vals {
		if *v < floor {
			*v = floor
		}
		sum += *v
	}
	for _, v := range vals {
		*v /= sum
	}
	return w
}
