package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero failure threshold", mutate: func(c *Config) { c.FailureThreshold = 0 }, wantErr: true},
		{name: "zero success threshold", mutate: func(c *Config) { c.SuccessThreshold = 0 }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: true},
		{name: "zero probe limit", mutate: func(c *Config) { c.HalfOpenProbeLimit = 0 }, wantErr: true},
		{name: "percentage above 100", mutate: func(c *Config) { c.ErrorPercentageThreshold = 101 }, wantErr: true},
		{name: "zero sleep window", mutate: func(c *Config) { c.SleepWindow = 0 }, wantErr: true},
		{name: "zero volume threshold", mutate: func(c *Config) { c.VolumeThreshold = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestConfig_Normalized(t *testing.T) {
	t.Parallel()

	got := Config{ErrorPercentageThreshold: 150, VolumeThreshold: 3}.normalized()

	require.NoError(t, got.Validate())
	require.Equal(t, 100.0, got.ErrorPercentageThreshold)
	require.Equal(t, uint(3), got.VolumeThreshold)
	require.Equal(t, uint(DefaultFailureThreshold), got.FailureThreshold)
	require.Equal(t, DefaultSleepWindow, got.SleepWindow)
}

func TestPhase_String(t *testing.T) {
	t.Parallel()

	cases := map[Phase]string{
		PhaseClosed:           "closed",
		PhaseOpen:             "open",
		PhaseHalfOpen:         "half_open",
		PhasePartialAdmission: "partial_admission",
		Phase(9):              "phase(9)",
	}

	for phase, want := range cases {
		require.Equal(t, want, phase.String())

		text, err := phase.MarshalText()
		require.NoError(t, err)
		require.Equal(t, want, string(text))
	}

	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("half_open")))
	require.Equal(t, PhaseHalfOpen, p)
	require.Error(t, p.UnmarshalText([]byte("ajar")))
}
