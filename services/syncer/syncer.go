// Package syncer implements freshness-gated, cache-through synchronization of
// upstream records into the local store. One generic synchronizer covers every
// entity; per-entity behavior is carried by a declarative descriptor.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stocksignals/store"
)

// Mode selects how many rows a descriptor maintains per symbol.
type Mode int

const (
	// SingleRecord entities keep one row per symbol (company profile).
	SingleRecord Mode = iota
	// History entities keep a windowed time series per symbol.
	History
)

// record constrains the synced type to a model pointer that can carry a
// freshness timestamp.
type record[T any] interface {
	*T
	SetFetchedAt(time.Time)
}

// FetchFunc retrieves and maps upstream records for one symbol.
type FetchFunc[T any] func(ctx context.Context, symbol string) ([]T, error)

// Descriptor declares the full sync behavior of one entity.
type Descriptor[T any] struct {
	// Entity names the record kind in logs and errors.
	Entity string
	Mode   Mode
	// TTL is the freshness window; data fetched within it is served from the store.
	TTL time.Duration
	// ConflictColumns is the natural uniqueness key used as the upsert target.
	ConflictColumns []string
	// UpdateColumns are overwritten when an upsert hits an existing row.
	UpdateColumns []string
	// SortColumn is the business date column used to order history reads,
	// distinct from fetched_at. Required in History mode.
	SortColumn string
	// WindowSize caps how many rows a history read returns (0 means no cap).
	WindowSize int
	Fetch      FetchFunc[T]
}

// Syncer is a freshness-gated cache-through reader for one entity.
type Syncer[T any, PT record[T]] struct {
	store *store.Store
	desc  Descriptor[T]
	// now is swappable in tests.
	now func() time.Time
}

// New validates the descriptor and builds a synchronizer. Construction fails
// loudly on bad configuration rather than misbehaving later.
func New[T any, PT record[T]](st *store.Store, desc Descriptor[T]) (*Syncer[T, PT], error) {
	if st == nil {
		return nil, fmt.Errorf("syncer %s: store is required", desc.Entity)
	}
	if desc.Entity == "" {
		return nil, errors.New("syncer: entity name is required")
	}
	if desc.Fetch == nil {
		return nil, fmt.Errorf("syncer %s: fetch function is required", desc.Entity)
	}
	if desc.TTL <= 0 {
		return nil, fmt.Errorf("syncer %s: TTL must be positive", desc.Entity)
	}
	if len(desc.ConflictColumns) == 0 {
		return nil, fmt.Errorf("syncer %s: conflict columns are required", desc.Entity)
	}
	if desc.Mode == History && desc.SortColumn == "" {
		return nil, fmt.Errorf("syncer %s: history mode requires a sort column", desc.Entity)
	}
	return &Syncer[T, PT]{store: st, desc: desc, now: time.Now}, nil
}

// EnsureFresh returns the locally stored records for symbol, fetching from
// upstream first when the stored copy is older than the TTL. When upstream
// fails but stale rows exist, the stale rows are returned with a warning; the
// fetch error surfaces only when there is nothing to fall back to. History
// results are ordered newest first by the business date column.
func (s *Syncer[T, PT]) EnsureFresh(ctx context.Context, symbol string) ([]T, error) {
	if fresh, ok := s.isFresh(ctx, symbol); ok && fresh {
		return s.readBack(ctx, symbol)
	}

	records, err := s.desc.Fetch(ctx, symbol)
	if err != nil || len(records) == 0 {
		stale, readErr := s.readBack(ctx, symbol)
		if readErr == nil && len(stale) > 0 {
			log.Printf("Warning: %s fetch failed for %s, serving %d stale record(s): %v",
				s.desc.Entity, symbol, len(stale), err)
			return stale, nil
		}
		if err == nil {
			err = fmt.Errorf("upstream returned no %s records", s.desc.Entity)
		}
		return nil, fmt.Errorf("failed to sync %s for %s: %w", s.desc.Entity, symbol, err)
	}

	now := s.now().UTC()
	for i := range records {
		PT(&records[i]).SetFetchedAt(now)
	}

	if err := s.store.UpsertWithConflict(ctx, records, s.desc.ConflictColumns, s.desc.UpdateColumns); err != nil {
		return nil, fmt.Errorf("failed to store %s for %s: %w", s.desc.Entity, symbol, err)
	}

	return s.readBack(ctx, symbol)
}

// isFresh reports whether the most recent fetch for symbol is within the TTL.
// A store error here is treated as "not fresh" so the fetch path can decide.
func (s *Syncer[T, PT]) isFresh(ctx context.Context, symbol string) (bool, bool) {
	var stamps []time.Time
	err := s.store.DB().WithContext(ctx).
		Model(new(T)).
		Where("symbol = ?", symbol).
		Order("fetched_at DESC").
		Limit(1).
		Pluck("fetched_at", &stamps).Error
	if err != nil || len(stamps) == 0 {
		return false, err == nil
	}
	return s.now().UTC().Sub(stamps[0].UTC()) < s.desc.TTL, true
}

func (s *Syncer[T, PT]) readBack(ctx context.Context, symbol string) ([]T, error) {
	var out []T
	query := s.store.DB().WithContext(ctx).Where("symbol = ?", symbol)
	if s.desc.Mode == History {
		query = query.Order(s.desc.SortColumn + " DESC")
		if s.desc.WindowSize > 0 {
			query = query.Limit(s.desc.WindowSize)
		}
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to read %s for %s: %w", s.desc.Entity, symbol, err)
	}
	return out, nil
}
