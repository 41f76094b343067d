package handler

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"tg-modbot/internal/events"
	"tg-modbot/internal/logger"
)

// Stats counts what the router has processed since start
type Stats struct {
	textMessages atomic.Int64
	pollUpdates  atomic.Int64
	membership   atomic.Int64
	migrations   atomic.Int64
	ignored      atomic.Int64
	commands     atomic.Int64
	errors       atomic.Int64
	panics       atomic.Int64

	startTime time.Time
	// pending reports armed expiry timers; nil hides the line
	pending func() int
}

func newStats(pending func() int) *Stats {
	return &Stats{startTime: time.Now(), pending: pending}
}

func (s *Stats) countEvent(kind events.Kind) {
	switch kind {
	case events.KindText:
		s.textMessages.Add(1)
	case events.KindPoll:
		s.pollUpdates.Add(1)
	case events.KindBotAdded, events.KindBotRemoved:
		s.membership.Add(1)
	case events.KindMigrated:
		s.migrations.Add(1)
	default:
		s.ignored.Add(1)
	}
}

// Snapshot returns the counters together with runtime figures
func (s *Stats) Snapshot() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := map[string]interface{}{
		"uptime_seconds":    int64(time.Since(s.startTime).Seconds()),
		"text_messages":     s.textMessages.Load(),
		"poll_updates":      s.pollUpdates.Load(),
		"membership_events": s.membership.Load(),
		"migrations":        s.migrations.Load(),
		"ignored":           s.ignored.Load(),
		"commands":          s.commands.Load(),
		"errors":            s.errors.Load(),
		"panics":            s.panics.Load(),
		"memory_usage_mb":   bToMb(m.Alloc),
		"sys_memory_mb":     bToMb(m.Sys),
		"gc_runs":           m.NumGC,
		"goroutines":        runtime.NumGoroutine(),
	}
	if s.pending != nil {
		snap["pending_jobs"] = s.pending()
	}
	return snap
}

// LogPeriodically writes a snapshot every interval until ctx is done
func (s *Stats) LogPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := s.Snapshot()
		logger.Infof("Processing stats: %+v", snap)

		handled := snap["text_messages"].(int64) + snap["poll_updates"].(int64)
		failed := snap["errors"].(int64)
		if handled > 0 && float64(failed)/float64(handled) > 0.1 {
			logger.Warningf("High error rate: %.2f%% (%d errors out of %d updates)",
				float64(failed)/float64(handled)*100, failed, handled)
		}
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// Detailed renders the snapshot for the debug endpoint
func (s *Stats) Detailed() string {
	snap := s.Snapshot()
	out := fmt.Sprintf(`
=== tg-modbot Processing Status ===
Uptime: %d seconds
Text Messages: %d
Commands: %d
Poll Updates: %d
Membership Events: %d
Migrations: %d
Ignored Updates: %d
Errors: %d
Panics: %d
Memory Usage: %d MB
System Memory: %d MB
GC Runs: %d
Goroutines: %d
`,
		snap["uptime_seconds"],
		snap["text_messages"],
		snap["commands"],
		snap["poll_updates"],
		snap["membership_events"],
		snap["migrations"],
		snap["ignored"],
		snap["errors"],
		snap["panics"],
		snap["memory_usage_mb"],
		snap["sys_memory_mb"],
		snap["gc_runs"],
		snap["goroutines"],
	)
	if pending, ok := snap["pending_jobs"]; ok {
		out += fmt.Sprintf("Pending Expiry Jobs: %d\n", pending)
	}
	return out + "==================================="
}
