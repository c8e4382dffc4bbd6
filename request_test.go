// ABOUTME: Tests for update request validation.
// ABOUTME: Covers stage ordering, hostname normalization, batch authorization, and address fallback.

package dyndns53

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	return &Validator{Credentials: testCredentials(t)}
}

func TestValidate_Success(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)

	ev := testEvent(EncodeBasicAuth("alice", "s3cret"), "host.example.com,OTHER.example.com.,host.example.com.", "8.8.8.8", "9.9.9.9")
	req, err := v.Validate(context.Background(), ev)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	if diff := cmp.Diff([]string{"host.example.com.", "other.example.com."}, req.Hostnames); diff != "" {
		t.Errorf("Hostnames mismatch (-want +got):\n%s", diff)
	}
	if req.IP != "8.8.8.8" || req.Type != TypeA {
		t.Errorf("address = (%q, %s), want (8.8.8.8, A)", req.IP, req.Type)
	}
	if req.Account.Username != "alice" {
		t.Errorf("Account = %q, want alice", req.Account.Username)
	}
}

func TestNormalizeHostname_Idempotent(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"host.example.com", "host.example.com.", "Host.Example.Com"} {
		once := NormalizeHostname(in)
		if once != "host.example.com." {
			t.Errorf("NormalizeHostname(%q) = %q, want host.example.com.", in, once)
		}
		if twice := NormalizeHostname(once); twice != once {
			t.Errorf("NormalizeHostname not idempotent: %q -> %q", once, twice)
		}
	}
}

func TestValidate_TrailingDotAuthorizesIdentically(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)

	for _, host := range []string{"host.example.com", "host.example.com."} {
		req, err := v.Validate(context.Background(), testEvent(EncodeBasicAuth("alice", "s3cret"), host, "8.8.8.8", ""))
		if err != nil {
			t.Fatalf("Validate(%q) error: %v", host, err)
		}
		if req.Hostnames[0] != "host.example.com." {
			t.Errorf("Validate(%q) host = %q", host, req.Hostnames[0])
		}
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	alice := EncodeBasicAuth("alice", "s3cret")

	tests := []struct {
		name string
		ev   Event
		want Kind
	}{
		{"nil header", Event{QueryString: map[string]string{}}, KindInternal},
		{"nil query", Event{Header: map[string]string{"Authorization": alice}}, KindInternal},
		{"missing auth", testEvent("", "host.example.com", "8.8.8.8", ""), KindAuthorizationMissing},
		{"malformed auth", testEvent("Basic ???", "host.example.com", "8.8.8.8", ""), KindBadAgent},
		{"bad password", testEvent(EncodeBasicAuth("alice", "nope"), "host.example.com", "8.8.8.8", ""), KindAuthorization},
		{"missing hostname", testEvent(alice, "", "8.8.8.8", ""), KindBadAgent},
		{"blank hostname", Event{Header: map[string]string{"Authorization": alice}, QueryString: map[string]string{"hostname": "  "}}, KindBadAgent},
		{"empty entry", testEvent(alice, "host.example.com,", "8.8.8.8", ""), KindFQDN},
		{"single label", testEvent(alice, "localhost", "8.8.8.8", ""), KindFQDN},
		{"bad syntax", testEvent(alice, "host..example.com", "8.8.8.8", ""), KindFQDN},
		{"foreign host", testEvent(alice, "bob.example.com", "8.8.8.8", ""), KindHostname},
		{"mixed batch", testEvent(alice, "host.example.com,bob.example.com", "8.8.8.8", ""), KindHostname},
		{"no usable address", testEvent(alice, "host.example.com", "not-an-ip", "also-not-an-ip"), KindBadAgent},
		{"no source", testEvent(alice, "host.example.com", "10.0.0.1", ""), KindInternal},
	}

	v := newTestValidator(t)
	for _, tt := range tests {
		_, err := v.Validate(context.Background(), tt.ev)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if k := KindOf(err); k != tt.want {
			t.Errorf("%s: kind = %v, want %v (%v)", tt.name, k, tt.want, err)
		}
	}
}

func TestValidate_AuthCheckedBeforeHostname(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)

	// A wrong password must not reveal whether the hostname exists.
	_, err := v.Validate(context.Background(), testEvent(EncodeBasicAuth("alice", "nope"), "bob.example.com", "8.8.8.8", ""))
	if k := KindOf(err); k != KindAuthorization {
		t.Fatalf("kind = %v, want %v", k, KindAuthorization)
	}
}

func TestValidate_AddressFallback(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)
	alice := EncodeBasicAuth("alice", "s3cret")

	tests := []struct {
		name    string
		myip    string
		source  string
		wantIP  string
		wantTyp RecordType
	}{
		{"explicit wins", "8.8.8.8", "9.9.9.9", "8.8.8.8", TypeA},
		{"missing myip", "", "9.9.9.9", "9.9.9.9", TypeA},
		{"invalid myip", "garbage", "2606:4700:4700::1111", "2606:4700:4700::1111", TypeAAAA},
		{"private myip", "192.168.1.10", "9.9.9.9", "9.9.9.9", TypeA},
		{"source not re-checked", "", "203.0.113.5", "203.0.113.5", TypeA},
		{"explicit ipv6", "2a00:1450:4001::200e", "9.9.9.9", "2a00:1450:4001::200e", TypeAAAA},
	}

	for _, tt := range tests {
		req, err := v.Validate(context.Background(), testEvent(alice, "host.example.com", tt.myip, tt.source))
		if err != nil {
			t.Errorf("%s: Validate() error: %v", tt.name, err)
			continue
		}
		if req.IP != tt.wantIP || req.Type != tt.wantTyp {
			t.Errorf("%s: address = (%q, %s), want (%q, %s)", tt.name, req.IP, req.Type, tt.wantIP, tt.wantTyp)
		}
	}
}

func TestValidate_Abuse(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)
	v.Limiter = NewAbuseLimiter(1, 2)
	ev := testEvent(EncodeBasicAuth("alice", "s3cret"), "host.example.com", "8.8.8.8", "")

	for i := 0; i < 2; i++ {
		if _, err := v.Validate(context.Background(), ev); err != nil {
			t.Fatalf("Validate() #%d error: %v", i, err)
		}
	}
	_, err := v.Validate(context.Background(), ev)
	if k := KindOf(err); k != KindAbuse {
		t.Fatalf("kind = %v, want %v", k, KindAbuse)
	}

	// Other credentials have their own bucket.
	bob := testEvent(EncodeBasicAuth("bob", "hunter2:with:colons"), "bob.example.com", "8.8.8.8", "")
	if _, err := v.Validate(context.Background(), bob); err != nil {
		t.Errorf("Validate() for bob error: %v", err)
	}
}
