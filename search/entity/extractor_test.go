package entity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/citypulse/search/intent"
)

func labels(ms []Match) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Label)
	}
	return out
}

func TestExtract_Dates(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"live music tonight", []string{"tonight"}},
		{"things to do this weekend", []string{"weekend"}},
		{"brunch next saturday", []string{"next_saturday"}},
		{"concert on 12/31", []string{"absolute"}},
		{"pizza place", nil},
	}
	for _, tt := range tests {
		e := Extract(tt.text)
		require.Equal(t, tt.want, labels(e.Dates), "text: %q", tt.text)
	}
}

func TestExtract_Times(t *testing.T) {
	e := Extract("happy hour spots after work")
	require.Equal(t, []string{"happy_hour", "after_work"}, labels(e.Times))

	e = Extract("shows starting at 7 pm")
	require.Len(t, e.Times, 1)
	require.Equal(t, "absolute", e.Times[0].Label)
	require.Equal(t, "7 pm", e.Times[0].Value)

	e = Extract("doors at 9:30pm")
	require.Len(t, e.Times, 1)
	require.Equal(t, "9:30pm", e.Times[0].Value)
}

func TestExtract_Locations(t *testing.T) {
	tests := []struct {
		text      string
		wantLabel string
		wantValue string
	}{
		{"coffee near me", "proximity", "near me"},
		{"bars downtown", "neighborhood", "downtown"},
		{"food in the mission district", "neighborhood", "mission district"},
		{"events in 94110", "zip", "94110"},
		{"jazz in brooklyn", "city", "brooklyn"},
	}
	for _, tt := range tests {
		e := Extract(tt.text)
		require.NotEmpty(t, e.Locations, "text: %q", tt.text)
		require.Equal(t, tt.wantLabel, e.Locations[0].Label, "text: %q", tt.text)
		require.Equal(t, tt.wantValue, e.Locations[0].Value, "text: %q", tt.text)
	}

	require.True(t, Extract("bars downtown").HasLocationSpecificity())
	require.False(t, Extract("live music").HasLocationSpecificity())
}

func TestExtract_Prices(t *testing.T) {
	e := Extract("free jazz under $20")
	require.Equal(t, []string{"free", "under"}, labels(e.Prices))
	require.Equal(t, 20.0, e.Prices[1].Num)

	e = Extract("dinner $$$")
	require.Len(t, e.Prices, 1)
	require.Equal(t, "level", e.Prices[0].Label)
	require.Equal(t, 3.0, e.Prices[0].Num)

	e = Extract("tickets $10-$40")
	require.Equal(t, []string{"range"}, labels(e.Prices))
	require.Equal(t, 10.0, e.Prices[0].Num)
}

func TestExtract_ZipNotPriceRange(t *testing.T) {
	// 5-digit zips must not parse as a price range.
	e := Extract("bars in 94110")
	for _, p := range e.Prices {
		require.NotEqual(t, "range", p.Label)
	}
}

func TestExtract_Distances(t *testing.T) {
	e := Extract("tacos within 2 miles")
	require.Len(t, e.Distances, 1)
	require.Equal(t, 2.0, e.Distances[0].Num)

	e = Extract("parks within 3 km")
	require.Len(t, e.Distances, 1)
	require.InDelta(t, 1.864, e.Distances[0].Num, 0.01)

	e = Extract("coffee within 10 blocks")
	require.Len(t, e.Distances, 1)
	require.InDelta(t, 0.5, e.Distances[0].Num, 0.001)

	e = Extract("bars walking distance")
	require.Len(t, e.Distances, 1)
	require.Equal(t, "walking", e.Distances[0].Label)
	require.Equal(t, 0.5, e.Distances[0].Num)
}

func TestDistanceConstraintMiles(t *testing.T) {
	e := Extract("spots within 5 miles walking distance")
	miles, ok := e.DistanceConstraintMiles()
	require.True(t, ok)
	require.Equal(t, 0.5, miles) // tightest wins

	_, ok = Extract("live music").DistanceConstraintMiles()
	require.False(t, ok)
}

func TestExtract_Social(t *testing.T) {
	tests := []struct {
		text string
		want intent.GroupSize
	}{
		{"date night ideas", intent.GroupDate},
		{"romantic dinner", intent.GroupDate},
		{"drinks with friends", intent.GroupSmall},
		{"something for a big group", intent.GroupLarge},
		{"eating alone", intent.GroupSolo},
	}
	for _, tt := range tests {
		g, ok := Extract(tt.text).GroupSize()
		require.True(t, ok, "text: %q", tt.text)
		require.Equal(t, tt.want, g, "text: %q", tt.text)
	}

	_, ok := Extract("pizza tonight").GroupSize()
	require.False(t, ok)
}

func TestBudgetLevel(t *testing.T) {
	tests := []struct {
		text string
		want intent.BudgetLevel
		ok   bool
	}{
		{"free events", intent.BudgetFree, true},
		{"dinner under $15", intent.BudgetBudget, true},
		{"dinner under $60", intent.BudgetModerate, true},
		{"cheap eats $", intent.BudgetBudget, true},
		{"nice dinner $$", intent.BudgetModerate, true},
		{"fancy dinner $$$$", intent.BudgetUpscale, true},
		{"pizza tonight", "", false},
	}
	for _, tt := range tests {
		got, ok := Extract(tt.text).BudgetLevel()
		require.Equal(t, tt.ok, ok, "text: %q", tt.text)
		require.Equal(t, tt.want, got, "text: %q", tt.text)
	}
}

func TestHasTimeSensitivity(t *testing.T) {
	require.True(t, Extract("live music tonight").HasTimeSensitivity())
	require.True(t, Extract("brunch spots").HasTimeSensitivity())
	require.False(t, Extract("pizza near me").HasTimeSensitivity())
}

func TestExtract_Deterministic(t *testing.T) {
	const q = "free jazz tonight within 2 miles downtown with friends"
	first := Extract(q)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Extract(q))
	}
}
