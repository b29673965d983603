// Command reelbot joins a grapple server as a scripted remote player that
// fires, reels in and releases on a loop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pthm-cable/grapple/netplay"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "Server websocket URL")
	name := flag.String("name", "reelbot", "Player name")
	targetX := flag.Float64("target-x", 640, "World X to fire at")
	targetY := flag.Float64("target-y", 200, "World Y to fire at")
	reelSec := flag.Float64("reel", 3, "Longest reel in seconds")
	restSec := flag.Float64("rest", 1, "Pause between shots in seconds")
	cycles := flag.Int("cycles", 0, "Stop after N fire/release cycles (0 = unlimited)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	client, err := netplay.Dial(dialCtx, *url, *name)
	cancel()
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	hz := float64(client.TickRateHz)
	b := newBot(client.SessionID, uint64(*reelSec*hz), uint64(*restSec*hz), uint64(hz))
	logger.Info("joined", "session", client.SessionID, "tick_rate", client.TickRateHz)

	states := make(chan netplay.StateMsg, 16)
	go func() {
		defer close(states)
		for {
			state, err := client.ReadState()
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("read failed", "error", err)
				}
				return
			}
			states <- state
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if err := send(client, b.step(state), *targetX, *targetY); err != nil {
				logger.Error("send failed", "error", err)
				return
			}
			if *cycles > 0 && b.cycles >= *cycles {
				logger.Info("done", "cycles", b.cycles, "tick", state.Tick)
				return
			}
		}
	}
}

func send(c *netplay.Client, a action, x, y float64) error {
	switch a {
	case actFire:
		return c.Fire(x, y)
	case actReelOn:
		return c.SetReeling(true)
	case actRelease:
		return c.Release()
	}
	return nil
}
