package config

import (
	"path/filepath"
	"testing"
)

func TestExpandPathHome(t *testing.T) {
	t.Setenv("HOME", "/home/ci")

	tests := map[string]string{
		"~":                "/home/ci",
		"~/logs":           "/home/ci/logs",
		"$HOME/inventory":  "/home/ci/inventory",
		"/var/log/../logs": "/var/logs",
		"":                 "",
	}
	for raw, want := range tests {
		got, err := ExpandPath(raw)
		if err != nil {
			t.Fatalf("expand %q: %v", raw, err)
		}
		if got != filepath.Clean(want) && !(want == "" && got == "") {
			t.Fatalf("expand %q: got %q want %q", raw, got, want)
		}
	}
}

func TestUserConfigPathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	got, err := UserConfigPath()
	if err != nil {
		t.Fatalf("user config path: %v", err)
	}
	if got != filepath.Join("/xdg", "oct", "config.yaml") {
		t.Fatalf("unexpected user config path %q", got)
	}
	if inventory := defaultInventoryPath(); inventory != filepath.Join("/xdg", "oct", "inventory") {
		t.Fatalf("unexpected default inventory %q", inventory)
	}
}
