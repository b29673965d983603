package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grapple/game"
	"github.com/pthm-cable/grapple/systems"
	"github.com/pthm-cable/grapple/telemetry"
)

// HUDData holds the numbers shown in the top-left corner.
type HUDData struct {
	Title   string
	Tick    uint64
	Speed   int
	FPS     int32
	Paused  bool
	Tethers int
	Reeling int
	Players int // remote sessions
	Server  bool
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
	player   []SectionDescriptor
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
		player:   playerSections(),
	}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	role := "client"
	if data.Server {
		role = "server"
	}
	rl.DrawText(
		fmt.Sprintf("Ropes: %d | Reeling: %d | Remote players: %d | %s", data.Tethers, data.Reeling, data.Players, role),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Tick: %d | Speed: %dx | FPS: %d", data.Tick, data.Speed, data.FPS),
		10, 55, 16, rl.LightGray,
	)

	if data.Paused {
		rl.DrawText("PAUSED", 10, 75, 16, rl.Yellow)
	}
}

// DrawControls renders the key legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// DrawPlayer renders the local player's gear panel at (x, y).
func (h *HUD) DrawPlayer(x, y, width int32, status game.PlayerStatus) {
	r := h.renderer
	height := r.Theme.Padding * 2
	for _, sd := range h.player {
		height += r.SectionHeight(sd, status)
	}
	r.DrawPanel(x, y, width, height)

	cy := y + r.Theme.Padding
	for _, sd := range h.player {
		cy = r.DrawSection(x+r.Theme.Padding, cy, sd, status, width-r.Theme.Padding*2)
	}
}

func playerSections() []SectionDescriptor {
	st := func(data any) game.PlayerStatus { return data.(game.PlayerStatus) }
	grappling := func(data any) bool { return st(data).Grappling }

	return []SectionDescriptor{
		{
			Title: "Player",
			Fields: []FieldDescriptor{
				{Label: "Name", Widget: WidgetText, TextGetter: func(d any) string { return st(d).Name }},
				{Label: "Combat", Widget: WidgetFlag, FlagGetter: func(d any) bool { return st(d).Combat }},
				{Label: "Slipping", Widget: WidgetFlag, FlagGetter: func(d any) bool { return st(d).Slipping }},
				{Label: "Hand", Widget: WidgetText, TextGetter: func(d any) string {
					switch s := st(d); {
					case !s.Holding:
						return "empty"
					case s.Grappling:
						return "grappling gun"
					default:
						return "drill"
					}
				}},
				{Label: "Ammo", Widget: WidgetText, TextGetter: func(d any) string {
					s := st(d)
					return fmt.Sprintf("%d/%d", s.Ammo, s.Capacity)
				}, Visible: func(d any) bool { return st(d).Holding }},
			},
		},
		{
			Title:   "Rope",
			Visible: grappling,
			Fields: []FieldDescriptor{
				{Label: "Hook out", Widget: WidgetFlag, FlagGetter: func(d any) bool { return st(d).HookOut }},
				{Label: "Attached", Widget: WidgetFlag, FlagGetter: func(d any) bool { return st(d).Roped }},
				{Label: "Reeling", Widget: WidgetFlag, FlagGetter: func(d any) bool { return st(d).Reeling }},
				{
					Label:   "Length",
					Widget:  WidgetBar,
					Getter:  func(d any) float32 { return float32(st(d).RopeLength) },
					RangeOf: func(d any) FieldRange { return FieldRange{Min: 0, Max: float32(st(d).MaxLength)} },
					Visible: func(d any) bool { return st(d).Roped },
				},
				{
					Label:   "Min",
					Widget:  WidgetText,
					Format:  "%.0f",
					Getter:  func(d any) float32 { return float32(st(d).MinLength) },
					Visible: func(d any) bool { return st(d).Roped },
				},
			},
		},
	}
}

// PerfPanel renders the per-phase tick breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats, registry *systems.SystemRegistry) {
	x, y := p.x, p.y

	rl.DrawText("System Performance", x, y, 16, rl.White)
	y += 20
	rl.DrawText(fmt.Sprintf("Avg tick: %s (%.0f ticks/s)", stats.AvgTickDuration.Round(time.Microsecond), stats.TicksPerSecond), x, y, 14, rl.Yellow)
	y += 16
	rl.DrawText(fmt.Sprintf("Ropes: %.1f (%.1f reeling)  %s/rope", stats.AvgTethers, stats.AvgReeling, stats.GrapplePerTether), x, y, 12, rl.SkyBlue)
	y += 14
	if stats.ReplaysPerTick > 0 {
		rl.DrawText(fmt.Sprintf("Replays: %.1f/tick", stats.ReplaysPerTick), x, y, 12, rl.SkyBlue)
		y += 14
	}

	for _, phase := range telemetry.Phases {
		avg, ok := stats.PhaseAvg[phase]
		if !ok {
			continue
		}
		pct := stats.PhasePct[phase]

		color := rl.LightGray
		if pct > 20 {
			color = rl.Red
		} else if pct > 10 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-16s %6s %5.1f%%", registry.GetName(phase), avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
