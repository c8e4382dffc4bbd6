// ABOUTME: Tests for address parsing and global-reach classification.
// ABOUTME: Covers record type inference, special-purpose ranges, and canonical output.

package dyndns53

import "testing"

func TestParseAddress_Global(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantTyp RecordType
	}{
		{"8.8.8.8", "8.8.8.8", TypeA},
		{"198.41.0.4", "198.41.0.4", TypeA},
		{"2606:4700:4700::1111", "2606:4700:4700::1111", TypeAAAA},
		{"2606:4700:4700:0000:0000:0000:0000:1111", "2606:4700:4700::1111", TypeAAAA},
		{"2A00:1450:4001::200E", "2a00:1450:4001::200e", TypeAAAA},
		{"192.0.0.9", "192.0.0.9", TypeA},
	}

	for _, tt := range tests {
		got, typ, err := ParseAddress(tt.in, true)
		if err != nil {
			t.Errorf("ParseAddress(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want || typ != tt.wantTyp {
			t.Errorf("ParseAddress(%q) = (%q, %s), want (%q, %s)", tt.in, got, typ, tt.want, tt.wantTyp)
		}
	}
}

func TestParseAddress_NonGlobalRejected(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		"192.0.2.10",
		"203.0.113.5",
		"10.1.2.3",
		"172.16.0.1",
		"192.168.1.1",
		"127.0.0.1",
		"100.64.0.1",
		"169.254.1.1",
		"0.0.0.0",
		"224.0.0.1",
		"255.255.255.255",
		"::1",
		"::",
		"fe80::1",
		"fd00::1",
		"2001:db8::1",
		"::ffff:8.8.8.8",
		"ff02::1",
	} {
		_, _, err := ParseAddress(in, true)
		if err == nil {
			t.Errorf("ParseAddress(%q, true) expected error", in)
			continue
		}
		if k := KindOf(err); k != KindBadAgent {
			t.Errorf("ParseAddress(%q) kind = %v, want %v", in, k, KindBadAgent)
		}
	}
}

func TestParseAddress_NonGlobalAllowedWithoutForce(t *testing.T) {
	t.Parallel()
	got, typ, err := ParseAddress("192.0.2.10", false)
	if err != nil {
		t.Fatalf("ParseAddress() error: %v", err)
	}
	if got != "192.0.2.10" || typ != TypeA {
		t.Errorf("ParseAddress() = (%q, %s), want (192.0.2.10, A)", got, typ)
	}

	_, typ, err = ParseAddress("2001:db8::1", false)
	if err != nil {
		t.Fatalf("ParseAddress() error: %v", err)
	}
	if typ != TypeAAAA {
		t.Errorf("type = %s, want AAAA", typ)
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"not-an-ip", "", "1.2.3", "1.2.3.4.5", "256.1.1.1", "fe80::1%eth0", " 8.8.8.8"} {
		for _, force := range []bool{true, false} {
			_, _, err := ParseAddress(in, force)
			if k := KindOf(err); err == nil || k != KindBadAgent {
				t.Errorf("ParseAddress(%q, %v) err = %v, want badagent", in, force, err)
			}
		}
	}
}

func TestSameAddress(t *testing.T) {
	t.Parallel()
	if !sameAddress("2001:DB8::1", "2001:db8:0::1") {
		t.Error("sameAddress() = false for equal IPv6 spellings")
	}
	if sameAddress("8.8.8.8", "8.8.4.4") {
		t.Error("sameAddress() = true for different addresses")
	}
	if !sameAddress("junk", "junk") {
		t.Error("sameAddress() = false for identical unparsable values")
	}
}
