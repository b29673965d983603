package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// ControlActions reports what the player clicked this frame.
type ControlActions struct {
	ToggleReel   bool
	Release      bool
	SwapHands    bool
	ToggleCombat bool
	TogglePause  bool
	Speed        int // requested steps per update
}

// ControlsPanel renders the right-side raygui strip: gun buttons, the speed
// slider and overlay toggles.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
	}
}

// SetPosition updates the panel position.
func (c *ControlsPanel) SetPosition(x, y int32) {
	c.x = x
	c.y = y
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Contains reports whether a screen point is over the panel, so clicks there
// are not also treated as shots.
func (c *ControlsPanel) Contains(x, y float32, overlays *OverlayRegistry) bool {
	if !c.visible {
		return false
	}
	h := c.height(overlays)
	return x >= float32(c.x) && x <= float32(c.x+c.width) && y >= float32(c.y) && y <= float32(c.y+h)
}

func (c *ControlsPanel) height(overlays *OverlayRegistry) int32 {
	t := c.renderer.Theme
	items := int32(0)
	for _, cat := range overlays.Categories() {
		items += int32(len(overlays.ByCategory(cat))) + 1
	}
	return t.Padding*2 + 3*34 + 40 + items*t.LineHeight + t.LineHeight
}

// Draw renders the panel and returns the clicked actions. speed is the
// current steps per update and is returned unchanged unless the slider moved.
func (c *ControlsPanel) Draw(overlays *OverlayRegistry, reeling, paused bool, speed int) ControlActions {
	actions := ControlActions{Speed: speed}
	if !c.visible {
		return actions
	}

	r := c.renderer
	padding := r.Theme.Padding
	r.DrawPanel(c.x, c.y, c.width, c.height(overlays))

	x := float32(c.x + padding)
	y := float32(c.y + padding)
	half := float32(c.width-padding*3) / 2

	reelText := "Reel [R]"
	if reeling {
		reelText = "Stop reel [R]"
	}
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: 28}, reelText) {
		actions.ToggleReel = true
	}
	if gui.Button(rl.Rectangle{X: x + half + float32(padding), Y: y, Width: half, Height: 28}, "Release [E]") {
		actions.Release = true
	}
	y += 34

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: 28}, "Swap [Q]") {
		actions.SwapHands = true
	}
	if gui.Button(rl.Rectangle{X: x + half + float32(padding), Y: y, Width: half, Height: 28}, "Combat [C]") {
		actions.ToggleCombat = true
	}
	y += 34

	pauseText := "Pause [Space]"
	if paused {
		pauseText = "Resume [Space]"
	}
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half*2 + float32(padding), Height: 28}, pauseText) {
		actions.TogglePause = true
	}
	y += 34

	rl.DrawText(fmt.Sprintf("Speed %dx", speed), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 14
	newSpeed := gui.SliderBar(
		rl.Rectangle{X: x + 16, Y: y, Width: float32(c.width-padding*2) - 40, Height: 16},
		"1", "64",
		float32(speed), 1, 64,
	)
	if int(newSpeed) != speed {
		actions.Speed = int(newSpeed)
	}
	y += 26

	iy := int32(y)
	rl.DrawText("Overlays", c.x+padding, iy, 14, rl.White)
	iy += r.Theme.LineHeight
	for _, cat := range overlays.Categories() {
		iy = r.DrawSectionHeader(c.x+padding, iy, categoryLabel(cat))
		for _, desc := range overlays.ByCategory(cat) {
			c.drawToggle(c.x+padding, iy, desc, overlays.IsEnabled(desc.ID), c.width-padding*2)
			iy += r.Theme.LineHeight
		}
	}

	return actions
}

// drawToggle draws a single overlay toggle line.
func (c *ControlsPanel) drawToggle(x, y int32, desc OverlayDescriptor, enabled bool, width int32) {
	r := c.renderer
	r.DrawFlag(x, y, desc.Name, enabled)

	if desc.KeyLabel != "" {
		keyText := fmt.Sprintf("[%s]", desc.KeyLabel)
		keyWidth := rl.MeasureText(keyText, r.Theme.FontSize)
		rl.DrawText(keyText, x+width-keyWidth, y, r.Theme.FontSize, rl.Color{R: 150, G: 150, B: 150, A: 255})
	}
}

func categoryLabel(cat string) string {
	switch cat {
	case "world":
		return "World"
	case "rope":
		return "Rope"
	case "debug":
		return "Debug"
	default:
		return cat
	}
}
