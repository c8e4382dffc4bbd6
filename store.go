// ABOUTME: Thread-safe in-memory record set store with atomic JSON persistence.
// ABOUTME: Implements Backend for local zones and reloads when the file changes on disk.

package dyndns53

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// storeFile is the JSON envelope for persisted record sets.
type storeFile struct {
	Records []RecordSet `json:"records"`
}

// Store holds address record sets in memory, backed by a JSON file.
type Store struct {
	mu         sync.RWMutex
	records    map[string][]RecordSet // key: canonical FQDN
	filePath   string
	reload     time.Duration
	lastMod    time.Time
	stopCh     chan struct{}
	ready      bool
	maxRecords int
	persistMu  sync.Mutex // serializes file writes, independent of mu
	generation uint64     // incremented on each mutation (under mu)
	persisted  uint64     // generation of last successful persist
}

// StoreOption configures optional Store behaviour.
type StoreOption func(*Store)

// WithMaxRecords caps the number of record sets. 0 means unlimited.
func WithMaxRecords(n int) StoreOption {
	return func(s *Store) {
		s.maxRecords = n
	}
}

// NewStore creates a store backed by filePath, loading it if it exists and
// creating an empty file otherwise. A reload of 0 disables auto-reload.
func NewStore(filePath string, reload time.Duration, opts ...StoreOption) (*Store, error) {
	s := &Store{
		records:  make(map[string][]RecordSet),
		filePath: filePath,
		reload:   reload,
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.loadOrCreate(); err != nil {
		return nil, fmt.Errorf("initialising store from %s: %w", filePath, err)
	}

	s.ready = true

	if reload > 0 {
		go s.run()
	}
	return s, nil
}

// Ready reports whether the store has completed initial loading.
func (s *Store) Ready() bool {
	return s.ready
}

// Stop terminates the auto-reload goroutine.
func (s *Store) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Get returns the record set for name and type.
func (s *Store) Get(name string, typ RecordType) (RecordSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rs := range s.records[dns.CanonicalName(name)] {
		if rs.Type == typ {
			return cloneSet(rs), true
		}
	}
	return RecordSet{}, false
}

// GetAll returns every record set for name.
func (s *Store) GetAll(name string) []RecordSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sets := s.records[dns.CanonicalName(name)]
	out := make([]RecordSet, len(sets))
	for i, rs := range sets {
		out[i] = cloneSet(rs)
	}
	return out
}

// List returns every record set, sorted by name then type.
func (s *Store) List() []RecordSet {
	s.mu.RLock()
	all := s.collectLocked()
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].Type < all[j].Type
	})
	return all
}

// ListRecords implements Backend. zoneID is the zone origin; only an exact
// name and type match is returned.
func (s *Store) ListRecords(_ context.Context, zoneID, name string, typ RecordType, max int) ([]RecordSet, error) {
	name = dns.CanonicalName(name)
	if err := checkZone(zoneID, name); err != nil {
		return nil, err
	}
	if max <= 0 {
		return nil, nil
	}
	rs, ok := s.Get(name, typ)
	if !ok {
		return nil, nil
	}
	return []RecordSet{rs}, nil
}

// UpsertRecord implements Backend. The set replaces any existing set of the
// same name and type, and the file is persisted before returning.
func (s *Store) UpsertRecord(_ context.Context, zoneID string, rs RecordSet) error {
	rs.Name = dns.CanonicalName(rs.Name)
	if err := checkZone(zoneID, rs.Name); err != nil {
		return err
	}
	if err := validateSet(rs); err != nil {
		return err
	}

	snapshot, gen, err := s.applyUpsert(cloneSet(rs))
	if err != nil {
		return err
	}
	return s.persistSnapshot(snapshot, gen)
}

func (s *Store) applyUpsert(rs RecordSet) ([]RecordSet, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := s.records[rs.Name]
	idx := -1
	for i, existing := range sets {
		if existing.Type == rs.Type {
			idx = i
			break
		}
	}

	if idx >= 0 {
		sets[idx] = rs
	} else {
		if s.maxRecords > 0 && s.countLocked() >= s.maxRecords {
			return nil, 0, fmt.Errorf("record limit of %d reached", s.maxRecords)
		}
		sets = append(sets, rs)
	}
	s.records[rs.Name] = sets

	s.generation++
	return s.collectLocked(), s.generation, nil
}

func checkZone(zoneID, name string) error {
	zone := dns.CanonicalName(zoneID)
	if !dns.IsSubDomain(zone, name) {
		return fmt.Errorf("name %s is outside zone %s", name, zone)
	}
	return nil
}

func validateSet(rs RecordSet) error {
	if rs.Type != TypeA && rs.Type != TypeAAAA {
		return fmt.Errorf("unsupported record type %q", rs.Type)
	}
	if rs.TTL == 0 || rs.TTL > MaxTTL {
		return fmt.Errorf("TTL %d out of range [1, %d]", rs.TTL, MaxTTL)
	}
	if len(rs.Values) == 0 {
		return fmt.Errorf("record set %s %s has no values", rs.Name, rs.Type)
	}
	for _, v := range rs.Values {
		if _, typ, err := ParseAddress(v, false); err != nil || typ != rs.Type {
			return fmt.Errorf("value %q is not a valid %s address", v, rs.Type)
		}
	}
	return nil
}

func cloneSet(rs RecordSet) RecordSet {
	rs.Values = append([]string(nil), rs.Values...)
	return rs
}

// persistSnapshot writes the given record sets to the backing file atomically.
// Serialized by persistMu; skips if a newer generation was already persisted.
// Must NOT be called with s.mu held.
func (s *Store) persistSnapshot(all []RecordSet, gen uint64) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if gen > 0 && gen <= s.persisted {
		return nil
	}

	raw, err := json.MarshalIndent(storeFile{Records: all}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.filePath), "dyndns53-*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp to %s: %w", s.filePath, err)
	}

	// Update metadata under mu to prevent self-triggered reload.
	s.mu.Lock()
	s.persisted = gen
	if info, err := os.Stat(s.filePath); err == nil {
		s.lastMod = info.ModTime()
	}
	s.updateRecordGaugeLocked()
	s.mu.Unlock()

	return nil
}

// updateRecordGaugeLocked sets storeRecordGauge per record type. Caller must hold mu.
func (s *Store) updateRecordGaugeLocked() {
	counts := make(map[RecordType]float64)
	for _, sets := range s.records {
		for _, rs := range sets {
			counts[rs.Type]++
		}
	}
	storeRecordGauge.Reset()
	for t, c := range counts {
		storeRecordGauge.WithLabelValues(string(t)).Set(c)
	}
}

// countLocked returns the number of record sets. Caller must hold at least RLock.
func (s *Store) countLocked() int {
	n := 0
	for _, sets := range s.records {
		n += len(sets)
	}
	return n
}

// collectLocked returns copies of all record sets. Caller must hold at least RLock.
func (s *Store) collectLocked() []RecordSet {
	var all []RecordSet
	for _, sets := range s.records {
		for _, rs := range sets {
			all = append(all, cloneSet(rs))
		}
	}
	return all
}

// loadOrCreate loads record sets from file or creates an empty file.
func (s *Store) loadOrCreate() error {
	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.records = make(map[string][]RecordSet)
		return s.persistSnapshot(nil, 0)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.filePath, err)
	}

	return s.loadFromBytes(raw)
}

func (s *Store) loadFromBytes(raw []byte) error {
	var data storeFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	records := make(map[string][]RecordSet)
	for _, rs := range data.Records {
		rs.Name = dns.CanonicalName(rs.Name)
		rs.Type = RecordType(strings.ToUpper(string(rs.Type)))
		if err := validateSet(rs); err != nil {
			return fmt.Errorf("record set %s: %w", rs.Name, err)
		}
		records[rs.Name] = append(records[rs.Name], rs)
	}
	s.records = records

	if info, err := os.Stat(s.filePath); err == nil {
		s.lastMod = info.ModTime()
	}
	s.updateRecordGaugeLocked()

	return nil
}

// run is the auto-reload goroutine that checks file mtime periodically.
func (s *Store) run() {
	ticker := time.NewTicker(s.reload)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkReload()
		}
	}
}

func (s *Store) checkReload() {
	// Skip while a persist is in flight.
	if !s.persistMu.TryLock() {
		return
	}
	s.persistMu.Unlock()

	s.mu.RLock()
	if s.generation > s.persisted {
		s.mu.RUnlock()
		return
	}
	lastMod := s.lastMod
	s.mu.RUnlock()

	info, err := os.Stat(s.filePath)
	if err != nil {
		return
	}
	if !info.ModTime().After(lastMod) {
		return
	}

	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		log.Errorf("reload %s: read error: %v", s.filePath, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A mutation may have landed while we were reading.
	if s.generation > s.persisted {
		return
	}
	if !info.ModTime().After(s.lastMod) {
		return
	}

	if err := s.loadFromBytes(raw); err != nil {
		log.Errorf("reload %s: parse error: %v", s.filePath, err)
	}
}
