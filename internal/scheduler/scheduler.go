
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

// Refresher is what the jobs drive.
type Refresher interface {
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
	RefreshWorldGold(ctx context.Context) error
}

type Config struct {
	// SnapshotEveryMinutes runs the snapshot refresh when the Istanbul minute
	// is a multiple of it.
	SnapshotEveryMinutes int
	// WorldGoldEveryHours runs the world gold refresh at minute 0 of hours
	// that are a multiple of it.
	WorldGoldEveryHours int
	// JobTimeout bounds one tick.
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{SnapshotEveryMinutes: 10, WorldGoldEveryHours: 6, JobTimeout: 2 * time.Minute}
}

type Scheduler struct {
	svc Refresher
	cfg Config
	log *logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(svc Refresher, cfg Config, log *logger.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.SnapshotEveryMinutes <= 0 {
		cfg.SnapshotEveryMinutes = def.SnapshotEveryMinutes
	}
	if cfg.WorldGoldEveryHours <= 0 {
		cfg.WorldGoldEveryHours = def.WorldGoldEveryHours
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	return &Scheduler{
		svc:    svc,
		cfg:    cfg,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	for {
		// Sleep until the next minute boundary in Istanbul time.
		now := utils.NowIstanbul()
		next := now.Truncate(time.Minute).Add(time.Minute)
		wait := time.Until(next)
		select {
		case <-time.After(wait):
			// tick
		case <-s.stopCh:
			return
		}
		s.RunTick(utils.NowIstanbul())
	}
}

// Due reports which jobs fire at t, read on the Istanbul wall clock.
func (s *Scheduler) Due(t time.Time) (snapshotDue, worldGoldDue bool) {
	t = t.In(utils.IstanbulLoc())
	snapshotDue = t.Minute()%s.cfg.SnapshotEveryMinutes == 0
	worldGoldDue = t.Minute() == 0 && t.Hour()%s.cfg.WorldGoldEveryHours == 0
	return snapshotDue, worldGoldDue
}

// RunTick runs the jobs due at t. World gold goes first so the snapshot
// built in the same tick compares against the new price.
func (s *Scheduler) RunTick(t time.Time) {
	snapshotDue, worldGoldDue := s.Due(t)
	if !snapshotDue && !worldGoldDue {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	if worldGoldDue {
		if err := s.svc.RefreshWorldGold(ctx); err != nil {
			s.log.Warn("world gold refresh: %v", err)
		}
	}
	if snapshotDue {
		snap, err := s.svc.Refresh(ctx)
		if err != nil {
			s.log.Warn("snapshot refresh: %v", err)
			return
		}
		s.log.Info("snapshot %s at %s", snap.CycleID, utils.TimeHHMM(snap.LastUpdate))
	}
}
