// Package batch fans derivation out over a page of tracked symbols. Every
// symbol is settled independently: one symbol's failure never stops the rest,
// and the run's report carries a per-symbol account of what happened.
package batch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"stocksignals/services/signals"
	"stocksignals/store"
)

// ProfileSource refreshes a symbol's company profile before derivation.
type ProfileSource interface {
	EnsureFreshProfile(ctx context.Context, symbol string) error
}

// Deriver runs signal derivation for one symbol.
type Deriver interface {
	DeriveForSymbol(ctx context.Context, symbol string) (*signals.Result, error)
	// StepNames lists the rule families a derivation would report on, so a
	// report can still account for them when derivation never ran.
	StepNames() []string
}

// EntityReport is the outcome of one symbol within a run.
type EntityReport struct {
	Symbol string `json:"symbol"`
	// Status is "succeeded", "failed" or "skipped".
	Status string `json:"status"`
	// Signals counts newly inserted signal rows.
	Signals int `json:"signals"`
	// Steps maps each processing stage to its outcome.
	Steps map[string]string `json:"steps"`
}

// Report summarizes a whole run.
type Report struct {
	BatchIndex int            `json:"batch_index"`
	Attempted  int            `json:"attempted"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Signals    int            `json:"signals"`
	Entities   []EntityReport `json:"entities"`
}

// Orchestrator pages through the tracked universe and settles every symbol.
type Orchestrator struct {
	store       *store.Store
	profiles    ProfileSource
	deriver     Deriver
	concurrency int
}

// NewOrchestrator builds an orchestrator. The profile source is optional.
func NewOrchestrator(st *store.Store, profiles ProfileSource, deriver Deriver, concurrency int) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("batch: store is required")
	}
	if deriver == nil {
		return nil, fmt.Errorf("batch: deriver is required")
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Orchestrator{store: st, profiles: profiles, deriver: deriver, concurrency: concurrency}, nil
}

// Run processes the batchIndex-th page of batchSize tracked symbols, ordered
// by symbol for a stable pagination. Only a failure to enumerate the page is
// returned as an error; per-symbol failures land in the report.
func (o *Orchestrator) Run(ctx context.Context, batchIndex, batchSize int) (*Report, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch: batch size must be positive")
	}
	if batchIndex < 0 {
		return nil, fmt.Errorf("batch: batch index must not be negative")
	}

	symbols, err := o.pageSymbols(ctx, batchIndex, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate batch %d: %w", batchIndex, err)
	}

	report := &Report{
		BatchIndex: batchIndex,
		Attempted:  len(symbols),
		Entities:   make([]EntityReport, len(symbols)),
	}
	if len(symbols) == 0 {
		log.Printf("Batch %d: no symbols to process", batchIndex)
		return report, nil
	}

	log.Printf("Batch %d: processing %d symbol(s) with concurrency %d", batchIndex, len(symbols), o.concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			report.Entities[i] = o.processSymbol(ctx, symbol)
		}(i, symbol)
	}
	wg.Wait()

	for _, entity := range report.Entities {
		if entity.Status == "succeeded" {
			report.Succeeded++
			report.Signals += entity.Signals
		} else {
			report.Failed++
		}
	}

	log.Printf("Batch %d complete: %d succeeded, %d failed, %d new signal(s)",
		batchIndex, report.Succeeded, report.Failed, report.Signals)
	return report, nil
}

func (o *Orchestrator) pageSymbols(ctx context.Context, batchIndex, batchSize int) ([]string, error) {
	var symbols []string
	err := o.store.DB().WithContext(ctx).
		Table("stocks").
		Where("status = ?", "active").
		Order("symbol ASC").
		Offset(batchIndex * batchSize).
		Limit(batchSize).
		Pluck("symbol", &symbols).Error
	return symbols, err
}

// processSymbol runs the per-symbol pipeline and never panics the run: a
// profile failure skips derivation, a derivation failure marks the symbol
// failed, and both leave a step-by-step account in the report.
func (o *Orchestrator) processSymbol(ctx context.Context, symbol string) EntityReport {
	entity := EntityReport{Symbol: symbol, Steps: make(map[string]string)}

	if o.profiles != nil {
		if err := o.profiles.EnsureFreshProfile(ctx, symbol); err != nil {
			log.Printf("Batch: profile refresh failed for %s: %v", symbol, err)
			entity.Status = "skipped"
			entity.Steps["profile"] = fmt.Sprintf("failed: %v", err)
			for _, step := range o.deriver.StepNames() {
				entity.Steps[step] = "skipped"
			}
			return entity
		}
		entity.Steps["profile"] = "refreshed"
	}

	result, err := o.deriver.DeriveForSymbol(ctx, symbol)
	if err != nil {
		log.Printf("Batch: derivation failed for %s: %v", symbol, err)
		entity.Status = "failed"
		entity.Steps["derivation"] = fmt.Sprintf("failed: %v", err)
		return entity
	}

	entity.Status = "succeeded"
	entity.Signals = result.Signals
	for step, outcome := range result.Steps {
		entity.Steps[step] = outcome
	}
	return entity
}
