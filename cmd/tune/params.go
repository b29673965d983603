package main

import (
	"github.com/pthm-cable/grapple/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of rope and reel parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "reel_rate", Path: "grapple.reel_rate", Min: 40, Max: 400, Default: 120},
			{Name: "reel_force", Path: "grapple.reel_force", Min: 500, Max: 12000, Default: 4000},
			{Name: "rope_margin", Path: "grapple.rope_margin", Min: 0, Max: 32, Default: 8},
			{Name: "rope_stiffness", Path: "grapple.rope_stiffness", Min: 2, Max: 60, Default: 20},
			{Name: "rope_breakpoint", Path: "grapple.rope_breakpoint", Min: 50, Max: 1200, Default: 400},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped values into cfg. Order matches Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	cfg.Grapple.ReelRate = c[0]
	cfg.Grapple.ReelForce = c[1]
	cfg.Grapple.RopeMargin = c[2]
	cfg.Grapple.RopeStiffness = c[3]
	cfg.Grapple.RopeBreakpoint = c[4]
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Grapple.ReelRate,
		cfg.Grapple.ReelForce,
		cfg.Grapple.RopeMargin,
		cfg.Grapple.RopeStiffness,
		cfg.Grapple.RopeBreakpoint,
	}
}
