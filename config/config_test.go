package config

import "testing"

func TestParseDirectory(t *testing.T) {
	cases := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"U1:alice", map[string]string{"U1": "alice"}},
		{"U1:alice,U2:bob", map[string]string{"U1": "alice", "U2": "bob"}},
		{" U1:alice , U2:bob ", map[string]string{"U1": "alice", "U2": "bob"}},
		{"garbage,:nouser,nochannel:", map[string]string{}},
	}

	for _, tc := range cases {
		got := parseDirectory(tc.raw)
		if len(got) != len(tc.want) {
			t.Fatalf("parseDirectory(%q) = %v, want %v", tc.raw, got, tc.want)
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Fatalf("parseDirectory(%q)[%s] = %q, want %q", tc.raw, k, got[k], v)
			}
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.Mode != ModeSingle {
		t.Fatalf("expected default mode single, got %s", cfg.Mode)
	}
	if cfg.SweepInterval != 0 {
		t.Fatalf("sweeper must default to disabled, got %s", cfg.SweepInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MODE", ModeMulti)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("USER_DIRECTORY", "U1:alice")

	cfg := Load()
	if cfg.Mode != ModeMulti {
		t.Fatalf("expected multi mode, got %s", cfg.Mode)
	}
	if cfg.HTTPPort != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.HTTPPort)
	}
	if cfg.UserDirectory["U1"] != "alice" {
		t.Fatalf("directory not parsed: %v", cfg.UserDirectory)
	}
}
