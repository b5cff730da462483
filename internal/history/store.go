package history

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/talkincode/toughwatch/internal/domain"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// serviceRecord is the persisted form of one service: the last known
// classification plus the rolling window of entries, newest last.
type serviceRecord struct {
	Name                string                `json:"name"`
	CurrentStatus       domain.Status         `json:"current_status"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	LastCheck           time.Time             `json:"last_check"`
	History             []domain.HistoryEntry `json:"history"`
}

// Store keeps the rolling history window for every service in memory and
// mirrors it to a single JSON file.
type Store struct {
	mu        sync.RWMutex
	flushMu   sync.Mutex
	path      string
	retention time.Duration
	records   map[string]*serviceRecord
}

// Open loads the store from path. A missing or corrupt data file is not an
// error, monitoring starts with empty history. Only an unusable parent
// directory fails, there would be nowhere to ever flush to.
func Open(path string, retention time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "create data dir for %s", path)
	}
	s := &Store{path: path, retention: retention, records: make(map[string]*serviceRecord)}
	s.load()
	return s, nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("history file unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}
	var records map[string]*serviceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		zap.L().Warn("history file corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return
	}
	cutoff := time.Now().Add(-s.retention)
	total := 0
	for name, rec := range records {
		if rec == nil || name == "" {
			continue
		}
		rec.Name = name
		rec.History = rec.History[firstAtOrAfter(rec.History, cutoff):]
		s.records[name] = rec
		total += len(rec.History)
	}
	zap.L().Info("history loaded",
		zap.String("path", s.path),
		zap.Int("services", len(s.records)),
		zap.Int("entries", total))
}

// firstAtOrAfter returns the index of the first entry not before the cutoff.
// Entries are ordered by timestamp, so this is a binary search.
func firstAtOrAfter(entries []domain.HistoryEntry, cutoff time.Time) int {
	return sort.Search(len(entries), func(i int) bool {
		return !entries[i].Timestamp.Before(cutoff)
	})
}

// Append records one classified entry together with the state it produced.
func (s *Store) Append(name string, st domain.ServiceState, entry domain.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	if !ok {
		rec = &serviceRecord{Name: name}
		s.records[name] = rec
	}
	rec.CurrentStatus = st.Status
	rec.ConsecutiveFailures = st.ConsecutiveFailures
	rec.LastCheck = entry.Timestamp
	rec.History = append(rec.History, entry)
	if n := firstAtOrAfter(rec.History, time.Now().Add(-s.retention)); n > 0 {
		rec.History = rec.History[n:]
	}
}

// Query returns the entries of one service at or after since, oldest first.
// Entries older than the retention window relative to now are never
// returned, whatever since says. The result is a copy.
func (s *Store) Query(name string, since time.Time) []domain.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	if !ok {
		return nil
	}
	if floor := time.Now().Add(-s.retention); since.Before(floor) {
		since = floor
	}
	i := firstAtOrAfter(rec.History, since)
	out := make([]domain.HistoryEntry, len(rec.History)-i)
	copy(out, rec.History[i:])
	return out
}

// EvictOlderThan drops entries before the cutoff and reports how many went.
func (s *Store) EvictOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for _, rec := range s.records {
		if n := firstAtOrAfter(rec.History, cutoff); n > 0 {
			rec.History = rec.History[n:]
			evicted += n
		}
	}
	return evicted
}

// Sweep evicts everything outside the retention window and flushes.
func (s *Store) Sweep() (int, error) {
	n := s.EvictOlderThan(time.Now().Add(-s.retention))
	return n, s.Flush()
}

// SeedStates exposes the last persisted classification per service so the
// engine can resume where the previous run stopped.
func (s *Store) SeedStates() map[string]domain.ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ServiceState, len(s.records))
	for name, rec := range s.records {
		out[name] = domain.ServiceState{
			Service:             name,
			Status:              rec.CurrentStatus,
			ConsecutiveFailures: rec.ConsecutiveFailures,
		}
	}
	return out
}

// Flush writes the whole store to the data file through a temp file and a
// rename, a crash mid-write never leaves a half document behind. Flushes
// serialize, the temp file only ever has one writer.
func (s *Store) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	s.mu.RLock()
	data, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "write history")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "replace history")
	}
	return nil
}
