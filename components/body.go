package components

// Body holds physical properties of an entity.
type Body struct {
	Mass   float64 // <= 0 or Static means immovable
	Radius float64
	Static bool

	// Frame is the movement frame (grid) the body rides on. Bodies on
	// different frames drift independently of each other.
	Frame uint16

	Awake      bool
	SleepTicks int32 // consecutive ticks below the sleep speed

	// Weightless bodies cannot steer themselves unless something lets them.
	Weightless bool
	// Slipping is set for the tick a body skids across a puddle.
	Slipping bool
}

// InvMass returns the inverse mass, zero for immovable bodies.
func (b *Body) InvMass() float64 {
	if b.Static || b.Mass <= 0 {
		return 0
	}
	return 1 / b.Mass
}
