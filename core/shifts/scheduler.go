package shifts

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"vigil-ird/config"
	"vigil-ird/core/store"
	"vigil-ird/core/utils"
)

// Scheduler rolls shift windows on a cron cadence so the on-duty roster
// the escalation flow reads stays current without request-path writes.
type Scheduler struct {
	cron    *cron.Cron
	shifts  store.ShiftsStore
	purge   func(context.Context) (int64, error)
	cfg     *config.AppConfig
	logger  *utils.Logger
	entryID cron.EntryID
}

func NewScheduler(shifts store.ShiftsStore, purge func(context.Context) (int64, error), cfg *config.AppConfig, logger *utils.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		shifts: shifts,
		purge:  purge,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Scheduler) Start() error {
	spec := s.cfg.Scheduler.ShiftRollCron
	if spec == "" {
		spec = "@every 1m"
	}
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	if s.logger != nil {
		s.logger.Printf("shift scheduler started (%s)", spec)
	}
	// Roll once at startup so a restart does not leave stale windows
	// until the first tick.
	s.tick()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	changed, err := s.shifts.RollShifts(ctx, utils.NowUTC())
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("shift roll failed: %v", err)
		}
		return
	}
	if changed > 0 && s.logger != nil {
		s.logger.Printf("shift roll: %d transition(s)", changed)
	}
	if s.purge != nil {
		if _, err := s.purge(ctx); err != nil && s.logger != nil {
			s.logger.Warnf("session purge failed: %v", err)
		}
	}
}
