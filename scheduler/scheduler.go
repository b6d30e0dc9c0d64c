package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"stocksignals/config"
	"stocksignals/services/batch"
	"stocksignals/store"
)

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron         *gocron.Scheduler
	store        *store.Store
	orchestrator *batch.Orchestrator
	cfg          *config.Config
}

// NewScheduler creates a new scheduler instance
func NewScheduler(st *store.Store, orchestrator *batch.Orchestrator, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:         gocron.NewScheduler(time.UTC),
		store:        st,
		orchestrator: orchestrator,
		cfg:          cfg,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Full signal sweep daily at 21:30 UTC, after the US market close
	s.cron.Every(1).Day().At("21:30").Do(func() {
		s.runFullSweep()
	})

	// Refresh the first batch hourly during market hours so the most
	// liquid symbols stay current intraday
	s.cron.Every(1).Hour().Do(func() {
		if isMarketOpen() {
			s.runBatch(0)
		}
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// isMarketOpen checks roughly whether the US market is in session (UTC)
func isMarketOpen() bool {
	now := time.Now().UTC()
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	// 14:30 - 21:00 UTC covers 9:30 - 16:00 Eastern outside DST edge weeks
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 14*60+30 && minutes < 21*60
}
