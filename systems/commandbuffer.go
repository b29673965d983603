package systems

import (
	"github.com/mlange-42/ark/ecs"
)

// CommandBuffer collects structural changes requested while queries are open
// and applies them in PlayBack, after every system has run. Each op is guarded
// by a liveness check, so queueing the same deletion twice is harmless.
type CommandBuffer struct {
	world *ecs.World
	ops   []cbOp
}

type opKind uint8

const (
	opDelete opKind = iota
	opApply
)

type cbOp struct {
	k  opKind
	e  ecs.Entity
	fn func(w *ecs.World)
}

// NewCommandBuffer creates a command buffer for w.
func NewCommandBuffer(w *ecs.World) *CommandBuffer {
	return &CommandBuffer{
		world: w,
		ops:   make([]cbOp, 0, 64),
	}
}

// QueueDelete schedules removal of e.
func (c *CommandBuffer) QueueDelete(e ecs.Entity) {
	c.ops = append(c.ops, cbOp{k: opDelete, e: e})
}

// QueueApply schedules fn to run at playback.
func (c *CommandBuffer) QueueApply(fn func(w *ecs.World)) {
	c.ops = append(c.ops, cbOp{k: opApply, fn: fn})
}

// Pending returns the number of queued ops.
func (c *CommandBuffer) Pending() int {
	return len(c.ops)
}

// PendingDelete reports whether e is queued for deletion.
func (c *CommandBuffer) PendingDelete(e ecs.Entity) bool {
	for _, op := range c.ops {
		if op.k == opDelete && op.e == e {
			return true
		}
	}
	return false
}

// PlayBack applies queued ops in order and returns how many entities were removed.
// Ops queued during playback are applied in the same call.
func (c *CommandBuffer) PlayBack() int {
	removed := 0
	for len(c.ops) > 0 {
		ops := c.ops
		c.ops = make([]cbOp, 0, cap(ops))
		for _, op := range ops {
			switch op.k {
			case opDelete:
				if c.world.Alive(op.e) {
					c.world.RemoveEntity(op.e)
					removed++
				}
			case opApply:
				op.fn(c.world)
			}
		}
	}
	return removed
}
