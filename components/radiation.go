package components

// RadiationSource emits radiation.
type RadiationSource struct {
	Intensity float64
}

// RadiationReceiver accumulates radiation from nearby sources.
type RadiationReceiver struct {
	CurrentRadiation float64
}

// ChainRadiation turns received radiation into emitted radiation and blows up
// (taking its neighbours with it) past a threshold.
type ChainRadiation struct {
	BaseIntensity        float64
	Coefficient          float64 // emitted increase per unit received
	ExplosionThreshold   float64
	TotalIntensity       float64
	IntensitySlope       float64
	MaxIntensity         float64
	ChainExplosionRadius float64
}

// Explosive is a charge waiting to go off.
type Explosive struct {
	TotalIntensity float64
	IntensitySlope float64
	MaxIntensity   float64
	Triggered      bool
}

// Radius returns the blast radius implied by the explosive's parameters.
// The blast falls off by IntensitySlope per unit of distance from MaxIntensity.
func (e *Explosive) Radius() float64 {
	if e.IntensitySlope <= 0 {
		return 0
	}
	return e.MaxIntensity / e.IntensitySlope
}
