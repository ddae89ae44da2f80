package config

import (
	"os"
	"reflect"
	"testing"
)

// Deterministic test key; duplicated from testutil to avoid an import cycle.
const testSKHex = "4c0883a69102937d6231471b5dbb6204fe512961708279f5d0a42b2e25bba1fa"

// Load parses CLI flags on the global flag set, so it can only run once per
// test binary.
func TestLoad(t *testing.T) {
	os.Setenv(KeyRelayURLs, "wss://relay.one, wss://relay.two")
	os.Setenv(KeySecretKey, testSKHex)
	os.Setenv(KeyAckThreshold, "2")
	os.Setenv(KeyAckRetryPlanSeconds, "1,2,4")
	defer func() {
		os.Unsetenv(KeyRelayURLs)
		os.Unsetenv(KeySecretKey)
		os.Unsetenv(KeyAckThreshold)
		os.Unsetenv(KeyAckRetryPlanSeconds)
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []string{"wss://relay.one", "wss://relay.two"}
	if !reflect.DeepEqual(cfg.RelayURLs, want) {
		t.Errorf("expected relay URLs %v, got %v", want, cfg.RelayURLs)
	}
	if cfg.Ack.Threshold != 2 {
		t.Errorf("expected threshold 2, got %d", cfg.Ack.Threshold)
	}
	if !reflect.DeepEqual(cfg.Ack.RetryPlanSeconds, []int{1, 2, 4}) {
		t.Errorf("expected retry plan [1 2 4], got %v", cfg.Ack.RetryPlanSeconds)
	}
	if cfg.Ack.WaitSeconds != DefaultAckWaitSeconds {
		t.Errorf("expected default wait %d, got %d", DefaultAckWaitSeconds, cfg.Ack.WaitSeconds)
	}
	if cfg.Network.MaxBackoffSeconds != DefaultNetworkMaxBackoffSeconds {
		t.Errorf("expected default max backoff, got %d", cfg.Network.MaxBackoffSeconds)
	}
	if cfg.Network.WriteTimeoutSeconds != DefaultNetworkWriteTimeoutSeconds {
		t.Errorf("expected default write timeout, got %d", cfg.Network.WriteTimeoutSeconds)
	}
	if cfg.KeyPair.PrivateKeyHex != testSKHex {
		t.Errorf("expected derived keypair for the configured key")
	}
	if cfg.KeyPair.PublicKeyHex == "" {
		t.Error("expected derived public key")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RelayURLs: []string{"wss://relay.one"},
			SecretKey: testSKHex,
			Ack:       AckConfig{Threshold: 1, WaitSeconds: 9},
		}
	}

	t.Run("valid config", func(t *testing.T) {
		if err := valid().validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("no relays", func(t *testing.T) {
		cfg := valid()
		cfg.RelayURLs = nil
		if err := cfg.validate(); err == nil {
			t.Fatal("expected error for missing relays")
		}
	})

	t.Run("non-websocket relay URL", func(t *testing.T) {
		cfg := valid()
		cfg.RelayURLs = []string{"https://relay.one"}
		if err := cfg.validate(); err == nil {
			t.Fatal("expected error for https relay URL")
		}
	})

	t.Run("missing secret key", func(t *testing.T) {
		cfg := valid()
		cfg.SecretKey = ""
		if err := cfg.validate(); err == nil {
			t.Fatal("expected error for missing secret key")
		}
	})

	t.Run("zero threshold", func(t *testing.T) {
		cfg := valid()
		cfg.Ack.Threshold = 0
		if err := cfg.validate(); err == nil {
			t.Fatal("expected error for zero threshold")
		}
	})

	t.Run("zero ack wait", func(t *testing.T) {
		cfg := valid()
		cfg.Ack.WaitSeconds = 0
		if err := cfg.validate(); err == nil {
			t.Fatal("expected error for zero ack wait")
		}
	})
}

func TestSplitRelayURLs(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{"empty", "", nil},
		{"single", "wss://a", []string{"wss://a"}},
		{"multiple with spaces", " wss://a , wss://b ", []string{"wss://a", "wss://b"}},
		{"trailing comma", "wss://a,", []string{"wss://a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitRelayURLs(tt.raw)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestParseRetryPlan(t *testing.T) {
	t.Run("empty uses default", func(t *testing.T) {
		plan, err := parseRetryPlan("")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(plan, DefaultAckRetryPlanSeconds) {
			t.Errorf("expected default plan, got %v", plan)
		}
	})

	t.Run("custom plan", func(t *testing.T) {
		plan, err := parseRetryPlan("1, 2, 3")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(plan, []int{1, 2, 3}) {
			t.Errorf("expected [1 2 3], got %v", plan)
		}
	})

	t.Run("invalid entry", func(t *testing.T) {
		if _, err := parseRetryPlan("1,zero,3"); err == nil {
			t.Fatal("expected error for non-numeric entry")
		}
	})

	t.Run("non-positive entry", func(t *testing.T) {
		if _, err := parseRetryPlan("1,0,3"); err == nil {
			t.Fatal("expected error for zero delay")
		}
	})
}
