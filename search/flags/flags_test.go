package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	s := NewFromEnv()
	require.True(t, s.Enabled(Normalization))
	require.True(t, s.Enabled(CircuitBreaker))
	require.False(t, s.Enabled(DistributedCache)) // opt-in
}

func TestNewFromEnv_Override(t *testing.T) {
	t.Setenv("FEATURE_DEDUPLICATION", "false")
	t.Setenv("FEATURE_DISTRIBUTED_CACHE", "true")

	s := NewFromEnv()
	require.False(t, s.Enabled(Deduplication))
	require.True(t, s.Enabled(DistributedCache))
}

func TestToggle(t *testing.T) {
	s := NewFromEnv()
	require.True(t, s.Toggle(SmartFallbacks, false))
	require.False(t, s.Enabled(SmartFallbacks))
	require.True(t, s.Toggle(SmartFallbacks, true))
	require.True(t, s.Enabled(SmartFallbacks))

	// Unknown flags are rejected, not created.
	require.False(t, s.Toggle("NOT_A_FLAG", true))
	require.False(t, s.Enabled("NOT_A_FLAG"))
}

func TestSnapshotAndNames(t *testing.T) {
	s := NewFromEnv()
	snap := s.Snapshot()
	names := s.Names()
	require.Len(t, snap, len(names))
	for _, n := range names {
		_, ok := snap[n]
		require.True(t, ok)
	}
	// Snapshot is a copy; mutating it does not affect the set.
	snap[Normalization] = false
	require.True(t, s.Enabled(Normalization))
}
