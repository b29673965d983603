package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grapple/camera"
	"github.com/pthm-cable/grapple/game"
	"github.com/pthm-cable/grapple/ui"
)

const controlsLegend = "WASD steer | Click fire | R reel | E release | Q swap | C combat | Space pause | < > speed | Wheel zoom | Tab panel | F3 perf"

// View owns everything needed to show one game in a raylib window.
type View struct {
	camera     *camera.Camera
	background *BackgroundRenderer
	world      *WorldRenderer
	hud        *ui.HUD
	perf       *ui.PerfPanel
	controls   *ui.ControlsPanel
	overlays   *ui.OverlayRegistry

	screenW, screenH float32
	worldW, worldH   float32
	showPerf         bool
}

// NewView creates a view sized to the current window. Must be called after
// the raylib window is open.
func NewView(g *game.Game) *View {
	cfg := g.Config()
	w, h := float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight())
	worldW, worldH := float32(cfg.Derived.WorldW), float32(cfg.Derived.WorldH)

	return &View{
		camera:     camera.New(w, h, worldW, worldH),
		background: NewBackgroundRenderer(float32(cfg.Physics.GridCellSize), 14, 16, 22),
		world:      NewWorldRenderer(float32(cfg.Radiation.ChainExplosionRadius)),
		hud:        ui.NewHUD(),
		perf:       ui.NewPerfPanel(10, 100),
		controls:   ui.NewControlsPanel(int32(w)-230, 10, 220),
		overlays:   ui.NewOverlayRegistry(),
		screenW:    w,
		screenH:    h,
		worldW:     worldW,
		worldH:     worldH,
	}
}

// Draw renders one frame.
func (v *View) Draw(g *game.Game) {
	if player, ok := g.Player(); ok {
		for _, b := range g.Bodies() {
			if b.Entity == player {
				v.camera.Follow(float32(b.X), float32(b.Y))
				break
			}
		}
	}

	rl.BeginDrawing()

	v.background.Draw(v.camera, v.worldW, v.worldH, v.overlays.IsEnabled(ui.OverlayGrid))

	tethers := g.Tethers()
	v.world.Draw(v.camera, g.Bodies(), tethers, v.overlays)

	reeling := 0
	for _, t := range tethers {
		if t.Reeling {
			reeling++
		}
	}
	v.hud.Draw(ui.HUDData{
		Title:   "Grapple",
		Tick:    g.Tick(),
		Speed:   g.StepsPerUpdate(),
		FPS:     rl.GetFPS(),
		Paused:  g.Paused(),
		Tethers: len(tethers),
		Reeling: reeling,
		Players: g.Sessions(),
		Server:  g.Config().Authority.Server,
	})
	v.hud.DrawControls(int32(v.screenH), controlsLegend)

	status, hasPlayer := g.PlayerStatus()
	if hasPlayer {
		v.hud.DrawPlayer(int32(v.screenW)-230, int32(v.screenH)-230, 220, status)
	}
	if v.showPerf {
		v.perf.Draw(g.Perf().Stats(), g.Registry())
	}

	actions := v.controls.Draw(v.overlays, status.Reeling, g.Paused(), g.StepsPerUpdate())
	v.apply(g, actions)

	rl.EndDrawing()
}

// handleResize checks for window resize and propagates new dimensions.
func (v *View) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w, h := float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight())
	if w == v.screenW && h == v.screenH {
		return
	}
	v.screenW, v.screenH = w, h
	v.camera.Resize(w, h)
	v.controls.SetPosition(int32(w)-230, 10)
}
