package meta

import (
	"sync"
	"time"

	"otboard/internal/domain"
	"otboard/pkg/statsapi"
)

// Store holds the last successfully fetched dashboard metadata. The
// dashboard can serve with stale metadata but not with none, so the
// store keeps the last good copy and readiness means "loaded at least
// once".
type Store struct {
	mu       sync.RWMutex
	meta     *statsapi.Metadata
	loadedAt time.Time
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Set(meta *statsapi.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
	s.loadedAt = time.Now()
}

// Get returns the current metadata, or nil before the first load.
func (s *Store) Get() *statsapi.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

func (s *Store) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta != nil
}

func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Thresholds returns the configured delay bounds, or the shipped
// defaults before metadata is available.
func (s *Store) Thresholds() domain.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return domain.DefaultThresholds()
	}
	return s.meta.Config.Thresholds()
}

// Presets returns the configured quick time ranges, empty when none are
// configured (the reducer then falls back to its hardcoded windows).
func (s *Store) Presets() domain.TimePresets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil || s.meta.Config.TimePresets == nil {
		return domain.TimePresets{}
	}
	return *s.meta.Config.TimePresets
}

// DateRange returns the available data range, ok=false before the
// first load.
func (s *Store) DateRange() (statsapi.DateRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return statsapi.DateRange{}, false
	}
	return s.meta.DateRange, true
}

// UpdateConfig replaces just the config section, keeping date range and
// lines. Called when settings are saved through this service so new
// thresholds apply without waiting for the next refresh.
func (s *Store) UpdateConfig(cfg statsapi.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return
	}
	copy := *s.meta
	copy.Config = cfg
	s.meta = &copy
}
