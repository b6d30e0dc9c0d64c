package scheduler

import (
	"context"
	"log"
	"time"
)

// runFullSweep processes every batch of tracked symbols until a page comes
// back empty.
func (s *Scheduler) runFullSweep() {
	log.Println("Starting full signal sweep...")
	start := time.Now()

	total := 0
	for batchIndex := 0; ; batchIndex++ {
		signals, done := s.runBatch(batchIndex)
		total += signals
		if done {
			break
		}
	}

	log.Printf("Full signal sweep complete in %s, %d new signal(s)", time.Since(start).Round(time.Second), total)
}

// runBatch processes one batch and reports whether the sweep is finished
// (short page, empty page or enumeration failure).
func (s *Scheduler) runBatch(batchIndex int) (int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := s.orchestrator.Run(ctx, batchIndex, s.cfg.BatchSize)
	if err != nil {
		log.Printf("Error running batch %d: %v", batchIndex, err)
		return 0, true
	}
	return report.Signals, report.Attempted < s.cfg.BatchSize
}
