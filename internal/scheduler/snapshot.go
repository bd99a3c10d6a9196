package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/openarb-backend/internal/ledger"
	"github.com/kjannette/openarb-backend/internal/logging"
	"github.com/kjannette/openarb-backend/internal/metrics"
)

// Store persists whole ledger snapshots.
type Store interface {
	Name() string
	Save(ctx context.Context, snap ledger.Snapshot) error
	Load(ctx context.Context) (*ledger.Snapshot, error)
}

// Source is the live state being persisted.
type Source interface {
	Snapshot() (ledger.Snapshot, uint64)
	Restore(snap ledger.Snapshot) error
}

type SnapshotSchedulerConfig struct {
	Interval    time.Duration // e.g. 30*time.Second
	SaveTimeout time.Duration
}

// SnapshotScheduler restores state at startup and writes it back whenever it
// changed since the last successful save.
type SnapshotScheduler struct {
	src   Source
	store Store
	cfg   SnapshotSchedulerConfig
	log   *logrus.Entry

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	done      chan struct{}
	lastSaved uint64
	saveMu    sync.Mutex
}

func NewSnapshotScheduler(src Source, store Store, cfg SnapshotSchedulerConfig, log logrus.FieldLogger) *SnapshotScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	return &SnapshotScheduler{
		src:   src,
		store: store,
		cfg:   cfg,
		log:   logging.Component(log, "snapshot").WithField("backend", store.Name()),
	}
}

// RestoreLatest loads the stored snapshot, if any, into the source.
func (s *SnapshotScheduler) RestoreLatest(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		s.log.Info("No stored snapshot, starting with empty state")
		return nil
	}
	if err := s.src.Restore(*snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("Snapshot scheduler already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
				if _, err := s.SaveNow(ctx); err != nil {
					s.log.WithError(err).Error("Periodic snapshot failed")
				}
				cancel()
			}
		}
	}()

	s.log.WithField("interval", s.cfg.Interval.String()).Info("Snapshot scheduler started")
}

// Stop halts the ticker and writes a final snapshot.
func (s *SnapshotScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	_, err := s.SaveNow(ctx)
	s.log.Info("Snapshot scheduler stopped")
	return err
}

func (s *SnapshotScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SaveNow persists the current state unless it is unchanged since the last
// save. It reports whether a write happened.
func (s *SnapshotScheduler) SaveNow(ctx context.Context) (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snap, version := s.src.Snapshot()
	if version == s.lastSaved {
		return false, nil
	}

	start := time.Now()
	err := s.store.Save(ctx, snap)
	metrics.SnapshotDuration.WithLabelValues(s.store.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SnapshotSaves.WithLabelValues(s.store.Name(), "error").Inc()
		return false, fmt.Errorf("save snapshot v%d: %w", version, err)
	}
	metrics.SnapshotSaves.WithLabelValues(s.store.Name(), "ok").Inc()

	s.lastSaved = version
	s.log.WithFields(logrus.Fields{
		"version":  version,
		"accounts": len(snap.Accounts),
		"trades":   len(snap.Trades),
	}).Debug("Snapshot saved")
	return true, nil
}
