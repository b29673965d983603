// Package renderer draws a running game with raylib and turns keyboard and
// mouse input into game commands.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grapple/camera"
)

// BackgroundRenderer fills the screen and draws the world floor as a tiled
// grid scrolled with the camera.
type BackgroundRenderer struct {
	base     rl.Color
	floor    rl.Color
	line     rl.Color
	cellSize float32
}

// NewBackgroundRenderer creates a background with the given floor tile size.
func NewBackgroundRenderer(cellSize float32, baseR, baseG, baseB uint8) *BackgroundRenderer {
	return &BackgroundRenderer{
		base:     rl.Color{R: baseR, G: baseG, B: baseB, A: 255},
		floor:    rl.Color{R: baseR + 8, G: baseG + 10, B: baseB + 14, A: 255},
		line:     rl.Color{R: 255, G: 255, B: 255, A: 18},
		cellSize: cellSize,
	}
}

// Draw clears the frame and draws the visible part of the floor. With
// emphasize set the grid lines are drawn brighter.
func (b *BackgroundRenderer) Draw(cam *camera.Camera, worldW, worldH float32, emphasize bool) {
	rl.ClearBackground(b.base)

	x0, y0 := cam.WorldToScreen(0, 0)
	x1, y1 := cam.WorldToScreen(worldW, worldH)
	rl.DrawRectangle(int32(x0), int32(y0), int32(x1-x0), int32(y1-y0), b.floor)

	line := b.line
	if emphasize {
		line.A = 70
	}

	minX, minY, maxX, maxY := cam.VisibleWorldBounds()
	for wx := float32(int(max(minX, 0)/b.cellSize)) * b.cellSize; wx <= min(maxX, worldW); wx += b.cellSize {
		sx, _ := cam.WorldToScreen(wx, 0)
		rl.DrawLine(int32(sx), int32(max(y0, 0)), int32(sx), int32(min(y1, cam.ViewportH)), line)
	}
	for wy := float32(int(max(minY, 0)/b.cellSize)) * b.cellSize; wy <= min(maxY, worldH); wy += b.cellSize {
		_, sy := cam.WorldToScreen(0, wy)
		rl.DrawLine(int32(max(x0, 0)), int32(sy), int32(min(x1, cam.ViewportW)), int32(sy), line)
	}
}
