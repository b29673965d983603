package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/grapple/config"
	"github.com/pthm-cable/grapple/telemetry"
)

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Defaults()

	got := pv.ExtractFromConfig(cfg)
	for i, spec := range pv.Specs {
		if got[i] != spec.Default {
			t.Errorf("%s default = %v, config has %v", spec.Path, spec.Default, got[i])
		}
	}

	n := pv.Normalize(got)
	back := pv.Denormalize(n)
	for i := range back {
		if math.Abs(back[i]-got[i]) > 1e-9 {
			t.Errorf("param %d: %v -> %v", i, got[i], back[i])
		}
	}

	high := make([]float64, pv.Dim())
	for i := range high {
		high[i] = 1e9
	}
	pv.ApplyToConfig(cfg, high)
	if cfg.Grapple.ReelRate != pv.Specs[0].Max || cfg.Grapple.RopeBreakpoint != pv.Specs[4].Max {
		t.Errorf("ApplyToConfig did not clamp: %+v", cfg.Grapple)
	}
}

func TestComputeQuality(t *testing.T) {
	warm := telemetry.WindowStats{}
	tests := []struct {
		name    string
		windows []telemetry.WindowStats
		check   func(float64) bool
	}{
		{"only warmup", []telemetry.WindowStats{warm}, func(q float64) bool { return q == 0 }},
		{"no attaches", []telemetry.WindowStats{warm, {Breaks: 3}}, func(q float64) bool { return q == 0 }},
		{
			"clean reels",
			[]telemetry.WindowStats{warm, {Attaches: 2, Releases: 2, ReelStops: 2, TetherLifeMean: 3}},
			func(q float64) bool { return q > 0.9 },
		},
		{
			"every rope breaks",
			[]telemetry.WindowStats{warm, {Attaches: 2, Breaks: 2, TetherLifeMean: 0.1}},
			func(q float64) bool { return q < 0.1 },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if q := computeQuality(tc.windows); !tc.check(q) {
				t.Errorf("quality = %v", q)
			}
		})
	}
}
