package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"

	"stocksignals/models"
	"stocksignals/services/signals"
	"stocksignals/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	st, err := store.OpenDialector(sqlite.Open(dsn), false)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := models.MigrateMarketModels(st.DB()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return st
}

func seedStocks(t *testing.T, st *store.Store, symbols ...string) {
	t.Helper()
	for _, symbol := range symbols {
		stock := models.Stock{Symbol: symbol, Status: "active"}
		if err := st.DB().Create(&stock).Error; err != nil {
			t.Fatalf("failed to seed %s: %v", symbol, err)
		}
	}
}

type fakeProfiles struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]bool
}

func (f *fakeProfiles) EnsureFreshProfile(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	if f.failFor[symbol] {
		return errors.New("provider unavailable")
	}
	return nil
}

type fakeDeriver struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]bool
	signals int
}

func (f *fakeDeriver) StepNames() []string {
	return []string{"sma20", "ratings"}
}

func (f *fakeDeriver) DeriveForSymbol(ctx context.Context, symbol string) (*signals.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	if f.failFor[symbol] {
		return nil, errors.New("no price history")
	}
	return &signals.Result{
		Signals: f.signals,
		Steps:   map[string]string{"sma20": "evaluated (1 signal(s))"},
	}, nil
}

func entityBySymbol(report *Report, symbol string) *EntityReport {
	for i := range report.Entities {
		if report.Entities[i].Symbol == symbol {
			return &report.Entities[i]
		}
	}
	return nil
}

func TestRunSettlesAllSymbols(t *testing.T) {
	st := openTestStore(t)
	seedStocks(t, st, "AAPL", "MSFT", "NVDA")

	profiles := &fakeProfiles{}
	deriver := &fakeDeriver{signals: 2}

	o, err := NewOrchestrator(st, profiles, deriver, 2)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	report, err := o.Run(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if report.Attempted != 3 || report.Succeeded != 3 || report.Failed != 0 {
		t.Errorf("report = %d/%d/%d, want 3 attempted, 3 succeeded, 0 failed",
			report.Attempted, report.Succeeded, report.Failed)
	}
	if report.Signals != 6 {
		t.Errorf("signals = %d, want 6", report.Signals)
	}
	if len(deriver.calls) != 3 {
		t.Errorf("deriver called %d times, want 3", len(deriver.calls))
	}

	entity := entityBySymbol(report, "MSFT")
	if entity == nil {
		t.Fatal("MSFT missing from report")
	}
	if entity.Status != "succeeded" {
		t.Errorf("MSFT status = %q, want succeeded", entity.Status)
	}
	if entity.Steps["profile"] != "refreshed" {
		t.Errorf("MSFT profile step = %q, want refreshed", entity.Steps["profile"])
	}
	if entity.Steps["sma20"] == "" {
		t.Error("MSFT report missing derivation steps")
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	st := openTestStore(t)
	seedStocks(t, st, "AAPL", "MSFT", "NVDA")

	profiles := &fakeProfiles{failFor: map[string]bool{"AAPL": true}}
	deriver := &fakeDeriver{signals: 1, failFor: map[string]bool{"MSFT": true}}

	o, err := NewOrchestrator(st, profiles, deriver, 2)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	report, err := o.Run(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if report.Attempted != 3 || report.Succeeded != 1 || report.Failed != 2 {
		t.Errorf("report = %d/%d/%d, want 3 attempted, 1 succeeded, 2 failed",
			report.Attempted, report.Succeeded, report.Failed)
	}

	// Profile failure short-circuits derivation for that symbol only.
	aapl := entityBySymbol(report, "AAPL")
	if aapl.Status != "skipped" {
		t.Errorf("AAPL status = %q, want skipped", aapl.Status)
	}
	if !strings.Contains(aapl.Steps["profile"], "failed") {
		t.Errorf("AAPL profile step = %q, want a failure note", aapl.Steps["profile"])
	}
	// The report still accounts for every derivation family.
	for _, step := range []string{"sma20", "ratings"} {
		if aapl.Steps[step] != "skipped" {
			t.Errorf("AAPL step %q = %q, want skipped", step, aapl.Steps[step])
		}
	}
	for _, call := range deriver.calls {
		if call == "AAPL" {
			t.Error("derivation ran for AAPL despite profile failure")
		}
	}

	msft := entityBySymbol(report, "MSFT")
	if msft.Status != "failed" {
		t.Errorf("MSFT status = %q, want failed", msft.Status)
	}
	if !strings.Contains(msft.Steps["derivation"], "failed") {
		t.Errorf("MSFT derivation step = %q, want a failure note", msft.Steps["derivation"])
	}

	nvda := entityBySymbol(report, "NVDA")
	if nvda.Status != "succeeded" {
		t.Errorf("NVDA status = %q, want succeeded", nvda.Status)
	}
}

func TestRunPagination(t *testing.T) {
	st := openTestStore(t)
	seedStocks(t, st, "AAPL", "MSFT", "NVDA")

	deriver := &fakeDeriver{signals: 1}
	o, err := NewOrchestrator(st, nil, deriver, 2)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	ctx := context.Background()

	first, err := o.Run(ctx, 0, 2)
	if err != nil {
		t.Fatalf("batch 0 failed: %v", err)
	}
	if first.Attempted != 2 {
		t.Errorf("batch 0 attempted %d, want 2", first.Attempted)
	}
	// Symbol-ordered pagination: batch 0 carries the first two alphabetically.
	if entityBySymbol(first, "AAPL") == nil || entityBySymbol(first, "MSFT") == nil {
		t.Errorf("batch 0 symbols unexpected: %+v", first.Entities)
	}

	second, err := o.Run(ctx, 1, 2)
	if err != nil {
		t.Fatalf("batch 1 failed: %v", err)
	}
	if second.Attempted != 1 {
		t.Errorf("batch 1 attempted %d, want 1", second.Attempted)
	}
	if entityBySymbol(second, "NVDA") == nil {
		t.Errorf("batch 1 symbols unexpected: %+v", second.Entities)
	}

	third, err := o.Run(ctx, 2, 2)
	if err != nil {
		t.Fatalf("batch 2 failed: %v", err)
	}
	if third.Attempted != 0 {
		t.Errorf("batch 2 attempted %d, want 0", third.Attempted)
	}
}

func TestRunSkipsInactiveStocks(t *testing.T) {
	st := openTestStore(t)
	seedStocks(t, st, "AAPL")
	delisted := models.Stock{Symbol: "GONE", Status: "delisted"}
	if err := st.DB().Create(&delisted).Error; err != nil {
		t.Fatalf("failed to seed delisted stock: %v", err)
	}

	deriver := &fakeDeriver{signals: 1}
	o, err := NewOrchestrator(st, nil, deriver, 2)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	report, err := o.Run(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Attempted != 1 {
		t.Errorf("attempted %d, want 1 (delisted excluded)", report.Attempted)
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	st := openTestStore(t)
	o, err := NewOrchestrator(st, nil, &fakeDeriver{}, 0)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	if _, err := o.Run(context.Background(), 0, 0); err == nil {
		t.Error("expected an error for zero batch size")
	}
	if _, err := o.Run(context.Background(), -1, 10); err == nil {
		t.Error("expected an error for negative batch index")
	}
}
