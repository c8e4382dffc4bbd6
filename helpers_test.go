// ABOUTME: Shared fixtures for package tests: credentials, a fake backend, and event builders.
// ABOUTME: The fake backend records calls and can inject failures per host.

package dyndns53

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

const testCredentialsYAML = `
"alice:s3cret":
  hosts:
    host.example.com.:
      zone_id: example.com.
      record:
        ttl: 60
    other.example.com:
      zone_id: example.com.
"bob:hunter2:with:colons":
  hosts:
    bob.example.com.:
      zone_id: example.com.
      record:
        ttl: 300
`

func testCredentials(t *testing.T) *Credentials {
	t.Helper()
	c, err := ParseCredentials([]byte(testCredentialsYAML))
	if err != nil {
		t.Fatalf("ParseCredentials() error: %v", err)
	}
	return c
}

func testEvent(auth, hostname, myip, source string) Event {
	ev := Event{
		Header:      map[string]string{},
		QueryString: map[string]string{},
		Context:     map[string]string{},
	}
	if auth != "" {
		ev.Header["Authorization"] = auth
	}
	if hostname != "" {
		ev.QueryString["hostname"] = hostname
	}
	if myip != "" {
		ev.QueryString["myip"] = myip
	}
	if source != "" {
		ev.Context["source-ip"] = source
	}
	return ev
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "records.json"), 0)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

type upsertCall struct {
	ZoneID string
	Set    RecordSet
}

type fakeBackend struct {
	mu        sync.Mutex
	sets      map[string]RecordSet // key: name + "/" + type
	upserts   []upsertCall
	lists     int
	listErr   map[string]error // key: name
	upsertErr map[string]error // key: name
	// extra is returned after the exact match, mimicking Route 53 ordering.
	extra []RecordSet
}

func newFakeBackend(sets ...RecordSet) *fakeBackend {
	f := &fakeBackend{
		sets:      make(map[string]RecordSet),
		listErr:   make(map[string]error),
		upsertErr: make(map[string]error),
	}
	for _, rs := range sets {
		f.sets[rs.Name+"/"+string(rs.Type)] = rs
	}
	return f
}

func (f *fakeBackend) ListRecords(_ context.Context, _, name string, typ RecordType, max int) ([]RecordSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lists++
	if err := f.listErr[name]; err != nil {
		return nil, err
	}
	var out []RecordSet
	if rs, ok := f.sets[name+"/"+string(typ)]; ok {
		out = append(out, rs)
	}
	out = append(out, f.extra...)
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (f *fakeBackend) UpsertRecord(_ context.Context, zoneID string, rs RecordSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.upsertErr[rs.Name]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, upsertCall{ZoneID: zoneID, Set: rs})
	f.sets[rs.Name+"/"+string(rs.Type)] = rs
	return nil
}

func (f *fakeBackend) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

func (f *fakeBackend) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("fakeBackend{sets: %d, upserts: %d}", len(f.sets), len(f.upserts))
}
