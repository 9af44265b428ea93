package indexer

import (
	"log/slog"
	"sync"
	"time"
)

// UnknownTotal is passed to Progress.Start when the amount of work is not
// known up front
const UnknownTotal = -1

// Progress receives updates from a running batch reindex. Update is called
// concurrently from worker goroutines.
type Progress interface {
	Start(task string, total int)
	Update(done, failed int)
	Finish(result Result)
}

type noProgress struct{}

func (noProgress) Start(string, int) {}
func (noProgress) Update(int, int)   {}
func (noProgress) Finish(Result)     {}

// LogProgress logs batch progress at most once per interval
type LogProgress struct {
	Logger   *slog.Logger
	Interval time.Duration

	mu   sync.Mutex
	task string
	last time.Time
}

func (p *LogProgress) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *LogProgress) Start(task string, total int) {
	p.mu.Lock()
	p.task = task
	p.last = time.Now()
	p.mu.Unlock()

	if total == UnknownTotal {
		p.logger().Info(task, "total", "unknown")
		return
	}
	p.logger().Info(task, "total", total)
}

func (p *LogProgress) Update(done, failed int) {
	p.mu.Lock()
	if time.Since(p.last) < p.Interval {
		p.mu.Unlock()
		return
	}
	p.last = time.Now()
	task := p.task
	p.mu.Unlock()

	p.logger().Info(task, "done", done, "failed", failed)
}

func (p *LogProgress) Finish(result Result) {
	p.mu.Lock()
	task := p.task
	p.mu.Unlock()

	p.logger().Info(task+" finished",
		"done", result.Done,
		"failed", result.Failed,
		"ok", result.Success,
		"elapsed", result.Elapsed)
}
