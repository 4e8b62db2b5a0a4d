package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"nambo/internal/session"
)

const (
	DefaultSweepSpec      = "@every 10m"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0

	evictIdleSessionsTimeout = time.Minute
)

// Scheduler periodically evicts idle sessions from a registry.
type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	registry *session.Registry
	spec     string
	idleTTL  time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func New(
	ctx context.Context,
	registry *session.Registry,
	spec string,
	idleTTL time.Duration,
	log *slog.Logger,
) *Scheduler {
	if spec == "" {
		spec = DefaultSweepSpec
	}

	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:      ctx,
		cron:     c,
		registry: registry,
		spec:     spec,
		idleTTL:  idleTTL,
		timeout:  evictIdleSessionsTimeout,
		now:      time.Now,
		log:      log,
	}
}

func (s *Scheduler) Spec() string {
	return s.spec
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.evictIdleSessions); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) evictIdleSessions() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	before := s.registry.Len()
	evicted := s.registry.EvictIdle(ctx, s.now(), s.idleTTL)
	if err := ctx.Err(); err != nil {
		s.log.WarnContext(ctx, "Idle sessions sweep is interrupted",
			"error", err,
			"evicted", evicted)
	}
	if evicted == 0 {
		return
	}

	s.log.InfoContext(ctx, "Idle sessions are evicted",
		"evicted", evicted,
		"sessionsBefore", before,
		"idleTTL", s.idleTTL.String())
}
