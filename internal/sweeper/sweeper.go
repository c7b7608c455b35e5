package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

const (
	defaultSweepTimeout    = 10 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Reclaimer removes expired lock records and reports how many it removed.
type Reclaimer interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper periodically reclaims expired lock records on a cron schedule.
// Lock correctness never depends on it; it only bounds memory held by
// records nobody reads again.
type Sweeper struct {
	cron      *cron.Cron
	target    Reclaimer
	reclaimed prometheus.Counter
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithReclaimedCounter adds every reclaimed record count to c.
func WithReclaimedCounter(c prometheus.Counter) Option {
	return func(s *Sweeper) {
		s.reclaimed = c
	}
}

// WithTimeout bounds a single sweep.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		s.timeout = d
	}
}

// New creates a new Sweeper for target.
func New(target Reclaimer, logger *slog.Logger, opts ...Option) *Sweeper {
	// Create cron with seconds field support (optional) and standard parser
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	s := &Sweeper{
		cron:    c,
		target:  target,
		timeout: defaultSweepTimeout,
		logger:  logger.With("component", "sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers the sweep under the given cron spec.
func (s *Sweeper) Schedule(spec string) error {
	entryID, err := s.cron.AddJob(spec, s)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep %q: %w", spec, err)
	}

	s.logger.Info("scheduled expired lock sweep",
		"schedule", spec,
		"entry_id", entryID,
	)
	return nil
}

// Run performs one sweep. This method is called by the cron scheduler.
func (s *Sweeper) Run() {
	s.mu.Lock()
	if s.running {
		s.logger.Warn("sweep is already running, skipping")
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	removed, err := s.target.Sweep(ctx)
	if s.reclaimed != nil && removed > 0 {
		s.reclaimed.Add(float64(removed))
	}
	if err != nil {
		s.logger.Error("sweep failed", "error", err, "removed", removed)
		return
	}

	s.logger.Debug("sweep completed",
		"removed", removed,
		"duration", time.Since(start),
	)
}

// Start starts the cron scheduler.
func (s *Sweeper) Start() {
	s.logger.Info("starting sweeper")
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to complete,
// giving up after ctx is done or 30 seconds without a deadline.
func (s *Sweeper) Stop(ctx context.Context) {
	s.logger.Info("stopping sweeper")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("sweeper stopped")
	case <-ctx.Done():
		s.logger.Warn("sweep exceeded shutdown timeout")
	}
}

// IsRunning returns whether a sweep is currently executing.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Entries returns the cron entries for inspection.
func (s *Sweeper) Entries() []cron.Entry {
	return s.cron.Entries()
}
