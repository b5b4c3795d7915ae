package config

import (
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		wantPanic bool
	}{
		{name: "variable set", key: "QRLINK_TEST_VAR", value: "test_value"},
		{name: "variable not set", key: "QRLINK_TEST_VAR_MISSING", wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{name: "valid duration", value: "5s", def: time.Second, expected: 5 * time.Second},
		{name: "zero is honoured", value: "0s", def: time.Minute, expected: 0},
		{name: "invalid duration uses default", value: "invalid", def: 10 * time.Second, expected: 10 * time.Second},
		{name: "missing variable uses default", value: "", def: 15 * time.Second, expected: 15 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("QRLINK_TEST_DURATION", tt.value)

			if got := mustDuration("QRLINK_TEST_DURATION", tt.def); got != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{name: "true value", value: "true", def: false, expected: true},
		{name: "false value", value: "false", def: true, expected: false},
		{name: "invalid value uses default", value: "invalid", def: true, expected: true},
		{name: "missing variable uses default", value: "", def: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("QRLINK_TEST_BOOL", tt.value)

			if got := mustBool("QRLINK_TEST_BOOL", tt.def); got != tt.expected {
				t.Errorf("mustBool() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` 10.0.0.0/8, "192.168.1.0/24" ,,'::1' `)
	want := []string{"10.0.0.0/8", "192.168.1.0/24", "::1"}

	if len(got) != len(want) {
		t.Fatalf("splitAndTrim() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitAndTrim()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListenAddr(t *testing.T) {
	tests := map[string]string{
		"8080":           ":8080",
		":9000":          ":9000",
		"127.0.0.1:8080": "127.0.0.1:8080",
	}
	for in, want := range tests {
		if got := listenAddr(in); got != want {
			t.Errorf("listenAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QRLINK_BASE_URL", "https://qr.example.com/")

	cfg := Load()

	if cfg.BaseURL != "https://qr.example.com" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", cfg.BaseURL)
	}
	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q", cfg.ListenPort)
	}
	if cfg.Store != StoreMemory || cfg.Cache != CacheMemory {
		t.Errorf("Store/Cache = %q/%q, want memory/memory", cfg.Store, cfg.Cache)
	}
	if cfg.IDMaxAttempts != 10 || cfg.CacheCapacity != 10000 {
		t.Errorf("IDMaxAttempts=%d CacheCapacity=%d", cfg.IDMaxAttempts, cfg.CacheCapacity)
	}
	if cfg.ResolveCacheTTL != time.Hour || cfg.WarmInterval != 5*time.Minute || cfg.WarmTopN != 50 {
		t.Errorf("ttl=%v warm=%v topN=%d", cfg.ResolveCacheTTL, cfg.WarmInterval, cfg.WarmTopN)
	}
}

func TestLoadPanicsOnInvalidCombination(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing base url", env: map[string]string{}},
		{name: "relative base url", env: map[string]string{"QRLINK_BASE_URL": "qr.example.com"}},
		{name: "postgres without dsn", env: map[string]string{"QRLINK_BASE_URL": "https://x.io", "QRLINK_STORE": "postgres"}},
		{name: "redis without addr", env: map[string]string{"QRLINK_BASE_URL": "https://x.io", "QRLINK_CACHE": "redis"}},
		{name: "unknown store", env: map[string]string{"QRLINK_BASE_URL": "https://x.io", "QRLINK_STORE": "mongo"}},
		{name: "zero id attempts", env: map[string]string{"QRLINK_BASE_URL": "https://x.io", "QRLINK_ID_MAX_ATTEMPTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("QRLINK_BASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Load() should have panicked")
				}
			}()
			Load()
		})
	}
}
