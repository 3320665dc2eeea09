// Package paper provides the periodic version poller.
package paper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obentoo/paperbot/internal/common/logger"
	"github.com/robfig/cron/v3"
)

// DefaultPollInterval is the time between two polling cycles.
const DefaultPollInterval = 10 * time.Minute

const (
	pollerIdle int32 = iota
	pollerRunning
)

// CycleResult describes the outcome of one polling cycle.
type CycleResult struct {
	// Current is the version read from the download page
	Current string
	// Previous is the stored version before the cycle
	Previous string
	// HadPrevious is false when nothing was stored yet
	HadPrevious bool
	// Changed is true when Current differs from the stored version
	Changed bool
	// Saved is true when Current was written to the store
	Saved bool
	// Notified is true when the notifier accepted the event
	Notified bool
}

// Compare fetches the current version and reads the stored one without
// writing anything.
func Compare(ctx context.Context, source VersionSource, store Store) (*CycleResult, error) {
	current, err := source.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current version: %w", err)
	}

	previous, ok, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stored version: %w", err)
	}

	return &CycleResult{
		Current:     current,
		Previous:    previous,
		HadPrevious: ok,
		Changed:     !ok || strings.TrimSpace(previous) != current,
	}, nil
}

// Poller runs a polling cycle at a fixed interval. Cycles never overlap:
// a tick that fires while the previous cycle is still running is skipped.
type Poller struct {
	source     VersionSource
	store      Store
	notifier   Notifier
	interval   time.Duration
	runOnStart bool
	log        *logger.Logger

	// state is pollerIdle or pollerRunning
	state atomic.Int32
	// job wraps tick so concurrent runs are skipped
	job cron.Job

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PollerOption is a functional option for configuring Poller
type PollerOption func(*Poller)

// WithInterval sets the time between cycles. Non-positive values are ignored.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger used for cycle reports.
func WithLogger(l *logger.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRunOnStart controls whether Start runs a cycle immediately instead of
// waiting for the first tick. It defaults to true.
func WithRunOnStart(run bool) PollerOption {
	return func(p *Poller) {
		p.runOnStart = run
	}
}

// NewPoller creates a poller. The notifier may be nil, in which case
// changes are only saved.
func NewPoller(source VersionSource, store Store, notifier Notifier, opts ...PollerOption) *Poller {
	p := &Poller{
		source:     source,
		store:      store,
		notifier:   notifier,
		interval:   DefaultPollInterval,
		runOnStart: true,
		log:        logger.Named("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.job = cron.NewChain(cron.SkipIfStillRunning(cronLogger{p.log})).Then(cron.FuncJob(p.tick))
	return p
}

// Interval returns the time between cycles.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Running reports whether the poller has been started and not stopped.
func (p *Poller) Running() bool {
	return p.state.Load() == pollerRunning
}

// Start schedules the polling cycles. It returns false without doing
// anything when the poller is already running, so calling it on every
// gateway reconnect is safe.
func (p *Poller) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.CompareAndSwap(pollerIdle, pollerRunning) {
		p.log.Debug("Already running, ignoring start")
		return false
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.cron = cron.New(cron.WithLogger(cronLogger{p.log}))
	p.cron.Schedule(cron.Every(p.interval), p.job)
	p.cron.Start()

	if p.runOnStart {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.job.Run()
		}()
	}

	p.log.Info("Polling every %s", p.interval)
	return true
}

// Stop cancels the running cycle, stops the schedule and waits for
// in-flight work to finish. A stopped poller can be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.state.CompareAndSwap(pollerRunning, pollerIdle) {
		p.mu.Unlock()
		return
	}
	c, cancel := p.cron, p.cancel
	p.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	p.wg.Wait()
	p.log.Info("Stopped")
}

// tick runs one cycle and logs its outcome. Errors end the cycle only.
func (p *Poller) tick() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	p.log.Debug("Polling for new version")
	result, err := p.RunCycle(ctx)
	if err != nil {
		p.log.Error("Cycle failed (%s): %v", KindOf(err), err)
		return
	}
	if result.Changed {
		p.log.Info("Version changed: %s -> %s", displayPrevious(result), result.Current)
	} else {
		p.log.Debug("Version unchanged: %s", result.Current)
	}
}

// RunCycle performs one polling cycle: fetch the current version, compare
// it with the stored one and, when they differ, save it and notify. A
// failed save still notifies; both errors are joined in the result.
func (p *Poller) RunCycle(ctx context.Context) (*CycleResult, error) {
	result, err := Compare(ctx, p.source, p.store)
	if err != nil {
		return nil, err
	}
	if !result.Changed {
		return result, nil
	}

	var saveErr, notifyErr error
	if err := p.store.Save(ctx, result.Current); err != nil {
		saveErr = fmt.Errorf("saving version %s: %w", result.Current, err)
	} else {
		result.Saved = true
	}

	if p.notifier != nil {
		event := NotificationEvent{
			Previous:    result.Previous,
			HasPrevious: result.HadPrevious,
			Current:     result.Current,
		}
		if err := p.notifier.Notify(ctx, event); err != nil {
			notifyErr = fmt.Errorf("notifying version %s: %w", result.Current, err)
		} else {
			result.Notified = true
		}
	}

	return result, errors.Join(saveErr, notifyErr)
}

func displayPrevious(r *CycleResult) string {
	if !r.HadPrevious {
		return "(none)"
	}
	return r.Previous
}

// cronLogger routes scheduler messages to a Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.log.Warn("Previous cycle still running, skipping tick")
		return
	}
	l.log.Debug("cron: %s%s", msg, formatKeysAndValues(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: %s: %v%s", msg, err, formatKeysAndValues(keysAndValues))
}

func formatKeysAndValues(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
