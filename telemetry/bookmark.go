package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkBreakStorm     BookmarkType = "break_storm"
	BookmarkLongHaul       BookmarkType = "long_haul"
	BookmarkTetherRecovery BookmarkType = "tether_recovery"
	BookmarkTetherCollapse BookmarkType = "tether_collapse"
	BookmarkSteadyState    BookmarkType = "steady_state"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        uint64       `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	recentTetherMin    int // minimum live tethers in recent history
	recentTetherPeak   int
	seenTetherMin      bool
	steadyWindowsCount int // consecutive windows with a steady tether count
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		checks := []func(WindowStats) *Bookmark{
			bd.checkBreakStorm,
			bd.checkLongHaul,
			bd.checkTetherRecovery,
			bd.checkTetherCollapse,
			bd.checkSteadyState,
		}
		for _, check := range checks {
			if b := check(stats); b != nil {
				bookmarks = append(bookmarks, *b)
			}
		}
	}

	bd.addToHistory(stats)

	if !bd.seenTetherMin || stats.Tethers < bd.recentTetherMin {
		bd.recentTetherMin = stats.Tethers
		bd.seenTetherMin = true
	}
	if stats.Tethers > bd.recentTetherPeak {
		bd.recentTetherPeak = stats.Tethers
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkBreakStorm(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Breaks
	}
	avg := float64(total) / float64(len(history))

	if stats.Breaks >= 3 && float64(stats.Breaks) > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkBreakStorm,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d ropes broke against an average of %.1f", stats.Breaks, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkLongHaul(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.RopeMean
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.RopeMean > avg*2.0 && stats.RopeMean > 100 {
		return &Bookmark{
			Type:        BookmarkLongHaul,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Mean rope %.0f is %.1fx average (%.0f)", stats.RopeMean, stats.RopeMean/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkTetherRecovery(stats WindowStats) *Bookmark {
	if !bd.seenTetherMin || bd.recentTetherMin > 1 {
		return nil
	}

	if stats.Tethers >= 3 && stats.Tethers >= bd.recentTetherMin*3 {
		oldMin := bd.recentTetherMin
		bd.recentTetherMin = stats.Tethers

		return &Bookmark{
			Type:        BookmarkTetherRecovery,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Live tethers recovered from %d to %d", oldMin, stats.Tethers),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkTetherCollapse(stats WindowStats) *Bookmark {
	if bd.recentTetherPeak == 0 {
		return nil
	}

	drop := 1.0 - float64(stats.Tethers)/float64(bd.recentTetherPeak)
	if drop > 0.5 && stats.Tethers <= bd.recentTetherPeak-3 {
		oldPeak := bd.recentTetherPeak
		bd.recentTetherPeak = stats.Tethers

		return &Bookmark{
			Type:        BookmarkTetherCollapse,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Live tethers fell %.0f%% from %d to %d", drop*100, oldPeak, stats.Tethers),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkSteadyState(stats WindowStats) *Bookmark {
	if stats.Tethers < 1 {
		bd.steadyWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	var sum float64
	for _, h := range history[len(history)-4:] {
		sum += float64(h.Tethers)
	}
	mean := sum / 4

	var variance float64
	for _, h := range history[len(history)-4:] {
		d := float64(h.Tethers) - mean
		variance += d * d
	}
	variance /= 4

	// CV^2 < 0.04 means CV < 0.2
	if mean > 0 && variance/(mean*mean) < 0.04 {
		bd.steadyWindowsCount++
	} else {
		bd.steadyWindowsCount = 0
	}

	if bd.steadyWindowsCount == 5 {
		return &Bookmark{
			Type:        BookmarkSteadyState,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Steady at %d live tethers over 5+ windows", stats.Tethers),
		}
	}
	return nil
}
