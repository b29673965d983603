package renderer

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grapple/camera"
	"github.com/pthm-cable/grapple/game"
	"github.com/pthm-cable/grapple/ui"
)

var (
	colorAnchor  = rl.Color{R: 120, G: 130, B: 150, A: 255}
	colorRock    = rl.Color{R: 150, G: 110, B: 70, A: 255}
	colorReactor = rl.Color{R: 90, G: 200, B: 90, A: 255}
	colorHot     = rl.Color{R: 255, G: 70, B: 40, A: 255}
	colorActor   = rl.Color{R: 90, G: 160, B: 230, A: 255}
	colorLocal   = rl.Color{R: 240, G: 240, B: 120, A: 255}
	colorHook    = rl.Color{R: 230, G: 230, B: 230, A: 255}
	colorRound   = rl.Color{R: 230, G: 180, B: 90, A: 255}
	colorPuddle  = rl.Color{R: 60, G: 110, B: 200, A: 110}
	colorSlack   = rl.Color{R: 200, G: 200, B: 200, A: 255}
	colorTaut    = rl.Color{R: 240, G: 90, B: 70, A: 255}
	colorReel    = rl.Color{R: 250, G: 210, B: 80, A: 255}
)

// WorldRenderer draws bodies and ropes in screen space.
type WorldRenderer struct {
	chainRadius float32
}

// NewWorldRenderer creates a world renderer. chainRadius is drawn around
// reactors when the chain radius overlay is on.
func NewWorldRenderer(chainRadius float32) *WorldRenderer {
	return &WorldRenderer{chainRadius: chainRadius}
}

// Draw renders puddles first, then bodies, then ropes on top.
func (w *WorldRenderer) Draw(cam *camera.Camera, bodies []game.BodyView, tethers []game.TetherInfo, overlays *ui.OverlayRegistry) {
	for _, b := range bodies {
		if b.Kind == game.KindPuddle && cam.IsVisible(float32(b.X), float32(b.Y), float32(b.Radius)) {
			w.drawCircle(cam, b, colorPuddle)
		}
	}

	for _, b := range bodies {
		if b.Kind == game.KindPuddle || !cam.IsVisible(float32(b.X), float32(b.Y), float32(b.Radius)) {
			continue
		}
		w.drawBody(cam, b, overlays)
	}

	for _, t := range tethers {
		w.drawRope(cam, t, overlays)
	}
}

func (w *WorldRenderer) drawBody(cam *camera.Camera, b game.BodyView, overlays *ui.OverlayRegistry) {
	switch b.Kind {
	case game.KindAnchor:
		w.drawCircle(cam, b, colorAnchor)
	case game.KindRock:
		w.drawCircle(cam, b, colorRock)
	case game.KindReactor:
		w.drawCircle(cam, b, lerpColor(colorReactor, colorHot, float32(b.Heat)))
		if overlays.IsEnabled(ui.OverlayBlastRange) {
			sx, sy := cam.WorldToScreen(float32(b.X), float32(b.Y))
			rl.DrawCircleLines(int32(sx), int32(sy), w.chainRadius*cam.Zoom, rl.Fade(colorHot, 0.5))
		}
	case game.KindActor:
		c := colorActor
		if b.Local {
			c = colorLocal
		}
		w.drawCircle(cam, b, c)
		if b.Slipping {
			sx, sy := cam.WorldToScreen(float32(b.X), float32(b.Y))
			rl.DrawCircleLines(int32(sx), int32(sy), float32(b.Radius)*cam.Zoom+3, colorPuddle)
		}
		if overlays.IsEnabled(ui.OverlayNames) && b.Label != "" {
			sx, sy := cam.WorldToScreen(float32(b.X), float32(b.Y))
			width := rl.MeasureText(b.Label, 12)
			rl.DrawText(b.Label, int32(sx)-width/2, int32(sy-float32(b.Radius)*cam.Zoom)-16, 12, rl.LightGray)
		}
	case game.KindHook:
		w.drawCircle(cam, b, colorHook)
	case game.KindRound:
		w.drawCircle(cam, b, colorRound)
	}
}

func (w *WorldRenderer) drawCircle(cam *camera.Camera, b game.BodyView, c rl.Color) {
	sx, sy := cam.WorldToScreen(float32(b.X), float32(b.Y))
	rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, max(float32(b.Radius)*cam.Zoom, 1.5), c)
}

// drawRope colours the rope by how close it is to its maximum length, or in
// the reel colour while reeling.
func (w *WorldRenderer) drawRope(cam *camera.Camera, t game.TetherInfo, overlays *ui.OverlayRegistry) {
	hx, hy := cam.WorldToScreen(float32(t.HookPos.X), float32(t.HookPos.Y))
	gx, gy := cam.WorldToScreen(float32(t.HolderPos.X), float32(t.HolderPos.Y))

	c := colorReel
	if !t.Reeling {
		tension := float32(0)
		if t.Tether.MaxLength > 0 {
			tension = float32(t.RopeLength / t.Tether.MaxLength)
		}
		c = lerpColor(colorSlack, colorTaut, tension)
	}
	rl.DrawLineEx(rl.Vector2{X: hx, Y: hy}, rl.Vector2{X: gx, Y: gy}, max(2*cam.Zoom, 1), c)

	if overlays.IsEnabled(ui.OverlayRopeLabels) {
		label := fmt.Sprintf("%.0f / %.0f", t.RopeLength, t.Tether.MaxLength)
		rl.DrawText(label, int32((hx+gx)/2)+6, int32((hy+gy)/2)-6, 12, c)
	}
	if overlays.IsEnabled(ui.OverlayRopeLimits) {
		rl.DrawCircleLines(int32(hx), int32(hy), float32(t.Tether.MaxLength)*cam.Zoom, rl.Fade(colorTaut, 0.4))
		rl.DrawCircleLines(int32(hx), int32(hy), float32(t.Tether.MinLength)*cam.Zoom, rl.Fade(colorSlack, 0.4))
	}
}

func lerpColor(a, b rl.Color, t float32) rl.Color {
	t = min(max(t, 0), 1)
	mix := func(x, y uint8) uint8 { return uint8(float32(x) + (float32(y)-float32(x))*t) }
	return rl.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
