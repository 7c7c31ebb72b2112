package services

import (
	"context"
	"fmt"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"

	"github.com/robfig/cron/v3"
)

// MaintenanceScheduler runs the periodic jobs of a bidding instance: store
// health probes and expiry sweeps of process-local caches.
type MaintenanceScheduler struct {
	cron          *cron.Cron
	monitor       *StoreMonitor
	sweepers      []domain.Sweeper
	probeInterval time.Duration
	sweepInterval time.Duration
	probeTimeout  time.Duration
	log           logger.Logger
}

func NewMaintenanceScheduler(monitor *StoreMonitor, sweepers []domain.Sweeper,
	probeInterval, sweepInterval time.Duration, log logger.Logger) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		cron:          cron.New(),
		monitor:       monitor,
		sweepers:      sweepers,
		probeInterval: probeInterval,
		sweepInterval: sweepInterval,
		probeTimeout:  5 * time.Second,
		log:           log,
	}
}

func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting maintenance scheduler",
		"probe_interval", s.probeInterval, "sweep_interval", s.sweepInterval)

	if s.monitor != nil && s.probeInterval > 0 {
		if _, err := s.cron.AddFunc(every(s.probeInterval), func() {
			s.probeStore(ctx)
		}); err != nil {
			return err
		}
	}

	if len(s.sweepers) > 0 && s.sweepInterval > 0 {
		if _, err := s.cron.AddFunc(every(s.sweepInterval), func() {
			s.sweep(time.Now())
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

func (s *MaintenanceScheduler) Stop() error {
	s.log.Info("Stopping maintenance scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *MaintenanceScheduler) probeStore(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	if err := s.monitor.Probe(probeCtx); err != nil {
		s.log.Warn("Store probe failed", "error", err)
	}
}

func (s *MaintenanceScheduler) sweep(now time.Time) int {
	total := 0
	for _, sw := range s.sweepers {
		total += sw.Sweep(now)
	}
	if total > 0 {
		s.log.Debug("Swept expired entries", "count", total)
	}
	return total
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
