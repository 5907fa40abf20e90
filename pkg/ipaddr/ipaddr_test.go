package ipaddr

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantNormalized string
		wantLoopback   bool
		wantPrivate    bool
		wantLookupKey  string
	}{
		{
			name:           "public IPv4",
			raw:            "8.8.8.8",
			wantNormalized: "8.8.8.8",
			wantLookupKey:  "8.8.8.8",
		},
		{
			name:           "IPv4-mapped public IP",
			raw:            "::ffff:8.8.8.8",
			wantNormalized: "8.8.8.8",
			wantLookupKey:  "8.8.8.8",
		},
		{
			name:           "IPv4 loopback",
			raw:            "127.0.0.1",
			wantNormalized: "127.0.0.1",
			wantLoopback:   true,
		},
		{
			name:           "loopback range",
			raw:            "127.1.2.3",
			wantNormalized: "127.1.2.3",
			wantLoopback:   true,
		},
		{
			name:           "IPv6 loopback",
			raw:            "::1",
			wantNormalized: "::1",
			wantLoopback:   true,
		},
		{
			name:           "IPv4-mapped loopback",
			raw:            "::ffff:127.0.0.1",
			wantNormalized: "127.0.0.1",
			wantLoopback:   true,
		},
		{
			name:           "private 10/8",
			raw:            "10.0.0.1",
			wantNormalized: "10.0.0.1",
			wantPrivate:    true,
		},
		{
			name:           "private 192.168/16",
			raw:            "192.168.1.1",
			wantNormalized: "192.168.1.1",
			wantPrivate:    true,
		},
		{
			name:           "private 172.16/12 lower bound",
			raw:            "172.16.0.1",
			wantNormalized: "172.16.0.1",
			wantPrivate:    true,
		},
		{
			name:           "private 172.16/12 upper bound",
			raw:            "172.31.255.255",
			wantNormalized: "172.31.255.255",
			wantPrivate:    true,
		},
		{
			name:           "172.15 is public",
			raw:            "172.15.0.1",
			wantNormalized: "172.15.0.1",
			wantLookupKey:  "172.15.0.1",
		},
		{
			name:           "172.32 is public",
			raw:            "172.32.0.1",
			wantNormalized: "172.32.0.1",
			wantLookupKey:  "172.32.0.1",
		},
		{
			name:           "IPv4-mapped private IP",
			raw:            "::ffff:192.168.1.1",
			wantNormalized: "192.168.1.1",
			wantPrivate:    true,
		},
		{
			name:           "plain IPv6",
			raw:            "2001:db8::1",
			wantNormalized: "2001:db8::1",
			wantLookupKey:  "2001:db8::1",
		},
		{
			name:           "malformed input passes through",
			raw:            "not-an-ip",
			wantNormalized: "not-an-ip",
			wantLookupKey:  "not-an-ip",
		},
		{
			name:           "empty input",
			raw:            "",
			wantNormalized: "",
			wantLookupKey:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.raw)

			if got.NormalizedIP != tt.wantNormalized {
				t.Errorf("NormalizedIP = %q, want %q", got.NormalizedIP, tt.wantNormalized)
			}
			if got.IsLoopback != tt.wantLoopback {
				t.Errorf("IsLoopback = %v, want %v", got.IsLoopback, tt.wantLoopback)
			}
			if got.IsPrivate != tt.wantPrivate {
				t.Errorf("IsPrivate = %v, want %v", got.IsPrivate, tt.wantPrivate)
			}
			if got.LookupKey != tt.wantLookupKey {
				t.Errorf("LookupKey = %q, want %q", got.LookupKey, tt.wantLookupKey)
			}
		})
	}
}

func TestClassify_LoopbackAndPrivateCollapse(t *testing.T) {
	// All loopback and RFC 1918 addresses share one lookup key so they
	// land in the same cache bucket.
	nonPublic := []string{
		"127.0.0.1", "127.255.0.1", "::1", "::ffff:127.0.0.1",
		"10.0.0.1", "10.255.255.255", "172.16.0.1", "172.31.0.1",
		"192.168.0.1", "::ffff:10.1.2.3",
	}
	for _, ip := range nonPublic {
		if got := Classify(ip).LookupKey; got != "" {
			t.Errorf("Classify(%q).LookupKey = %q, want empty", ip, got)
		}
	}
}

func TestClassify_Idempotent(t *testing.T) {
	inputs := []string{"::ffff:8.8.8.8", "8.8.8.8", "::1", "2001:db8::1", "garbage"}
	for _, in := range inputs {
		once := Classify(in).NormalizedIP
		twice := Classify(once).NormalizedIP
		if once != twice {
			t.Errorf("Classify(%q) not idempotent: %q != %q", in, once, twice)
		}
	}
}
