package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		registry *Registry
		flag     string
		want     bool
	}{
		{"configured on", New(map[string]bool{FlagAutoSnapshot: true}), FlagAutoSnapshot, true},
		{"configured off", New(map[string]bool{FlagSuggestSignatures: false}), FlagSuggestSignatures, false},
		{"unknown flag", New(map[string]bool{FlagAutoSnapshot: true}), "colour-output", false},
		{"nil registry", nil, FlagSuggestSignatures, false},
		{"nil map", New(nil), FlagSuggestSignatures, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.registry.Enabled(tt.flag))
		})
	}
}

func TestRegistry_All(t *testing.T) {
	require.Equal(t, map[string]bool{}, (*Registry)(nil).All())
	require.Equal(t, map[string]bool{}, New(nil).All())

	r := New(map[string]bool{FlagAutoSnapshot: true})
	all := r.All()
	all[FlagAutoSnapshot] = false
	all["extra"] = true

	require.True(t, r.Enabled(FlagAutoSnapshot), "All returns a copy")
	require.Equal(t, map[string]bool{FlagAutoSnapshot: true}, r.All())
}

func TestWithDefaults(t *testing.T) {
	r := New(WithDefaults(nil))
	require.True(t, r.Enabled(FlagSuggestSignatures))
	require.False(t, r.Enabled(FlagAutoSnapshot))

	r = New(WithDefaults(map[string]bool{FlagSuggestSignatures: false, "extra": true}))
	require.False(t, r.Enabled(FlagSuggestSignatures))
	require.True(t, r.Enabled("extra"))
	require.Len(t, r.All(), 3)
}

func TestWithDefaults_DoesNotMutateDefaults(t *testing.T) {
	_ = WithDefaults(map[string]bool{FlagSuggestSignatures: false})
	require.True(t, Defaults()[FlagSuggestSignatures])
}
