package config_test

import (
	"strings"
	"testing"

	"goalsync/internal/config"
)

func TestFromYAMLAppliesDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`repo: acme/goals
site_base: https://acme.github.io/goals
directories:
  people: directory/people.yaml
  teams: directory/teams.yaml
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Tracker.BaseURL != "https://api.github.com" {
		t.Fatalf("default base url = %q", cfg.Tracker.BaseURL)
	}
	if cfg.Sync.SleepMS != 500 {
		t.Fatalf("default sleep = %d", cfg.Sync.SleepMS)
	}
	if cfg.Trackerd.Addr != "127.0.0.1:8080" {
		t.Fatalf("default trackerd addr = %q", cfg.Trackerd.Addr)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]string{
		"repo: not-a-slug\nsite_base: x\ndirectories:\n  people: p\n  teams: t\n":                                                      "config.repo",
		"site_base: x\ndirectories:\n  people: p\n  teams: t\n":                                                                        "config.repo is required",
		"repo: a/b\ndirectories:\n  people: p\n  teams: t\n":                                                                           "site_base",
		"repo: a/b\nsite_base: x\ndirectories:\n  teams: t\n":                                                                          "people",
		"repo: a/b\nsite_base: x\ndirectories:\n  people: p\n":                                                                         "teams",
		"repo: a/b\nsite_base: x\ndirectories:\n  people: p\n  teams: t\nsync:\n  sleep_ms: -1\n":                                      "sleep_ms",
		"repo: a/b\nsite_base: x\ndirectories:\n  people: p\n  teams: t\ntracker:\n  app:\n    id: app-1\n":                            "app needs id",
		"repo: a/b\nsite_base: x\ndirectories:\n  people: p\n  teams: t\ntracker:\n  token: pat\n  app:\n    id: app-1\n    installation_id: 7\n    private_key_path: k.pem\n": "not both",
	}
	for yaml, wantErr := range cases {
		_, err := config.FromYAML([]byte(yaml))
		if err == nil || !strings.Contains(err.Error(), wantErr) {
			t.Errorf("FromYAML(%q) err = %v, want %q", yaml, err, wantErr)
		}
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault("acme/goals")))
	if err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
	if cfg.Repo != "acme/goals" {
		t.Fatalf("repo = %q", cfg.Repo)
	}
}
