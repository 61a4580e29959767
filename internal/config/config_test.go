package config

import (
	"os"
	"testing"
)

func TestPort_Default(t *testing.T) {
	os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("default Port = %d, want %d", cfg.Port(), DefaultPort)
	}
}

func TestPort_FromEnv(t *testing.T) {
	os.Setenv(EnvPort, "9005")
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9005 {
		t.Errorf("Port = %d, want 9005", cfg.Port())
	}
}

func TestPort_Invalid(t *testing.T) {
	os.Setenv(EnvPort, "not-a-port")
	defer os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Error("New() should return error for invalid port")
	}
}

func TestPort_OutOfRange(t *testing.T) {
	os.Setenv(EnvPort, "70000")
	defer os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Error("New() should return error for out-of-range port")
	}
}

func TestHeadless_FromEnv(t *testing.T) {
	os.Setenv(EnvHeadless, "1")
	defer os.Unsetenv(EnvHeadless)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Headless() {
		t.Error("Headless() = false, want true")
	}
}

func TestStripCacheCap_FromEnv(t *testing.T) {
	os.Setenv(EnvStripCacheCap, "12")
	defer os.Unsetenv(EnvStripCacheCap)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StripCacheCap() != 12 {
		t.Errorf("StripCacheCap = %d, want 12", cfg.StripCacheCap())
	}
}

func TestStripCacheCap_Invalid(t *testing.T) {
	os.Setenv(EnvStripCacheCap, "0")
	defer os.Unsetenv(EnvStripCacheCap)

	if _, err := New(); err == nil {
		t.Error("New() should return error for non-positive cache capacity")
	}
}
