package components

// Puddle is a pool of fluid on the floor.
type Puddle struct {
	Volume            float64
	OverflowVolume    float64 // spills shed volume down to this
	OverflowThreshold float64 // no spill at or below this
	TransferTolerance float64 // transfers below this fraction of Volume do not wake the puddle
	DefaultSlippery   float64 // minimum speed to slip
	Awake             bool
}
