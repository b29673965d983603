package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grapple/game"
	"github.com/pthm-cable/grapple/ui"
)

// HandleInput processes keyboard and mouse input for the coming update.
func (v *View) HandleInput(g *game.Game) {
	v.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		g.SetPaused(!g.Paused())
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) {
		g.SetStepsPerUpdate(g.StepsPerUpdate() - 1)
	}
	if rl.IsKeyPressed(rl.KeyPeriod) {
		g.SetStepsPerUpdate(g.StepsPerUpdate() + 1)
	}

	if rl.IsKeyPressed(rl.KeyTab) {
		v.controls.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyF3) {
		v.showPerf = !v.showPerf
	}
	for _, key := range v.overlays.Keys() {
		if rl.IsKeyPressed(key) {
			v.overlays.HandleKeyPress(key)
		}
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		v.camera.ZoomBy(1 + wheel*0.1)
	}

	v.handlePlayerInput(g)
}

func (v *View) handlePlayerInput(g *game.Game) {
	player, ok := g.Player()
	if !ok {
		return
	}

	var x, y float64
	if rl.IsKeyDown(rl.KeyA) {
		x--
	}
	if rl.IsKeyDown(rl.KeyD) {
		x++
	}
	if rl.IsKeyDown(rl.KeyW) {
		y--
	}
	if rl.IsKeyDown(rl.KeyS) {
		y++
	}
	if x != 0 || y != 0 {
		g.Steer(player, x, y)
	}

	if rl.IsKeyPressed(rl.KeyR) {
		g.TogglePlayerReel()
	}
	if rl.IsKeyPressed(rl.KeyE) {
		g.Cycle(player)
	}
	if rl.IsKeyPressed(rl.KeyQ) {
		g.SwapHands(player)
	}
	if rl.IsKeyPressed(rl.KeyC) {
		g.ToggleCombat(player)
	}

	if rl.IsMouseButtonPressed(rl.MouseLeftButton) {
		mouse := rl.GetMousePosition()
		if !v.controls.Contains(mouse.X, mouse.Y, v.overlays) {
			wx, wy := v.camera.ScreenToWorld(mouse.X, mouse.Y)
			g.Fire(player, float64(wx), float64(wy))
		}
	}
}

// apply carries out what was clicked on the control strip.
func (v *View) apply(g *game.Game, a ui.ControlActions) {
	if a.Speed != g.StepsPerUpdate() {
		g.SetStepsPerUpdate(a.Speed)
	}
	if a.TogglePause {
		g.SetPaused(!g.Paused())
	}

	player, ok := g.Player()
	if !ok {
		return
	}
	if a.ToggleReel {
		g.TogglePlayerReel()
	}
	if a.Release {
		g.Cycle(player)
	}
	if a.SwapHands {
		g.SwapHands(player)
	}
	if a.ToggleCombat {
		g.ToggleCombat(player)
	}
}
