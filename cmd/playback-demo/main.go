// Command playback-demo wires a Player over a small synthetic
// composition and pulls a handful of frames from it, printing what was
// decoded. Grounded on cmd/prism/main.go's startup shape (slog setup,
// signal-driven context cancellation, an envOr helper for knobs) scaled
// down from a long-running server to a one-shot demo appropriate for a
// library with no network surface of its own.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rivermedia/flux/internal/memreader"
	"github.com/rivermedia/flux/opentime"
	"github.com/rivermedia/flux/player"
	"github.com/rivermedia/flux/timeline"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	comp := buildDemoComposition()
	videoRange := opentime.NewRange(opentime.New(0, 24), opentime.New(96, 24))
	io := memreader.NewIO(videoRange)

	p, err := player.Create(ctx, comp, io, log)
	if err != nil {
		log.Error("create failed", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	p.SetActiveRanges([]opentime.TimeRange{videoRange})
	p.SetRequestCount(envOrInt("REQUEST_BUDGET", 16))

	log.Info("demo composition ready",
		"globalStart", p.GetGlobalStartTime().Value,
		"duration", p.GetDuration().Value,
	)

	if info, ok := p.GetVideoInfo(ctx); ok {
		log.Info("video info", "streams", len(info.VideoStreams), "type", info.VideoType)
	}

	const sampleStep = 8
	for tick := int64(0); tick < 96; tick += sampleStep {
		reqCtx, reqCancel := context.WithTimeout(ctx, time.Second)
		f, ok := p.GetFrame(opentime.New(tick, 24), 0, nil).Wait(reqCtx)
		reqCancel()
		if !ok {
			log.Warn("frame request timed out", "tick", tick)
			continue
		}
		for i, l := range f.Layers {
			log.Info("decoded frame",
				"tick", tick,
				"layer", i,
				"hasPrimary", l.ImageA != nil,
				"hasSecondary", l.ImageB != nil,
				"transition", l.Transition,
				"phase", l.Phase,
			)
		}
	}

	st := p.Stats()
	log.Info("final scheduler stats", "pending", st.Pending, "inFlight", st.InFlight, "openReaders", st.OpenReaders)
}

// buildDemoComposition assembles two 48-frame clips joined by a 12-tick
// dissolve, the same shape as spec.md §8 scenario 2.
func buildDemoComposition() timeline.Composition {
	b := timeline.NewBuilder(opentime.New(0, 24), 24, "")
	clipA := b.AddClip(timeline.ClipData{
		Name:         "A",
		Media:        timeline.MediaReference{Path: "a.mov"},
		TrimmedRange: opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24)),
		MediaRate:    24,
		TimeWarp:     opentime.Identity(24),
	})
	clipB := b.AddClip(timeline.ClipData{
		Name:         "B",
		Media:        timeline.MediaReference{Path: "b.mov"},
		TrimmedRange: opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24)),
		MediaRate:    24,
		TimeWarp:     opentime.Identity(24),
	})
	tr := b.AddTrack("V1")
	b.AppendItem(tr, timeline.Item{
		Kind:  timeline.ItemClip,
		Clip:  clipA,
		Range: opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24)),
	})
	b.AppendItem(tr, timeline.Item{
		Kind:           timeline.ItemTransition,
		TransitionKind: timeline.TransitionDissolve,
		InOffset:       opentime.New(6, 24),
		OutOffset:      opentime.New(6, 24),
	})
	b.AppendItem(tr, timeline.Item{
		Kind:  timeline.ItemClip,
		Clip:  clipB,
		Range: opentime.NewRange(opentime.New(48, 24), opentime.New(48, 24)),
	})
	return b.Build()
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
