// ABOUTME: Tests for Basic-Auth header decoding.
// ABOUTME: Covers round-trips, colons in passwords, and the missing versus malformed split.

package dyndns53

import (
	"encoding/base64"
	"testing"
)

func TestDecodeBasicAuth_RoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		user, pass string
	}{
		{"alice", "s3cret"},
		{"bob", "hunter2:with:colons"},
		{"ünïcode", "pässwörd"},
		{"empty-pass", ""},
	}

	for _, tt := range tests {
		user, pass, err := DecodeBasicAuth(EncodeBasicAuth(tt.user, tt.pass))
		if err != nil {
			t.Errorf("DecodeBasicAuth(%q, %q) error: %v", tt.user, tt.pass, err)
			continue
		}
		if user != tt.user || pass != tt.pass {
			t.Errorf("round trip = (%q, %q), want (%q, %q)", user, pass, tt.user, tt.pass)
		}
	}
}

func TestDecodeBasicAuth_Malformed(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"no scheme":      base64.StdEncoding.EncodeToString([]byte("alice:s3cret")),
		"bearer scheme":  "Bearer abc",
		"bad base64":     "Basic !!!notbase64",
		"no separator":   "Basic " + base64.StdEncoding.EncodeToString([]byte("alice")),
		"invalid utf8":   "Basic " + base64.StdEncoding.EncodeToString([]byte{0xff, ':', 0xfe}),
		"empty":          "",
		"lowercase word": "basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret")),
	}

	for name, value := range tests {
		_, _, err := DecodeBasicAuth(value)
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if k := KindOf(err); k != KindBadAgent {
			t.Errorf("%s: kind = %v, want %v", name, k, KindBadAgent)
		}
	}
}

func TestAuthorizationHeader_Missing(t *testing.T) {
	t.Parallel()
	_, err := authorizationHeader(map[string]string{"User-Agent": "ddclient"})
	if k := KindOf(err); k != KindAuthorizationMissing {
		t.Fatalf("kind = %v, want %v", k, KindAuthorizationMissing)
	}
}

func TestAuthorizationHeader_CaseInsensitive(t *testing.T) {
	t.Parallel()
	v, err := authorizationHeader(map[string]string{"authorization": "Basic x"})
	if err != nil {
		t.Fatalf("authorizationHeader() error: %v", err)
	}
	if v != "Basic x" {
		t.Errorf("value = %q, want %q", v, "Basic x")
	}
}
