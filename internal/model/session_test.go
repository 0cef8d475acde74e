package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[SessionStatus]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusPaused:    false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestSessionClone(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := &Session{
		ID:        "s1",
		Kind:      KindScan,
		Status:    StatusRunning,
		StartedAt: &now,
		Scan:      &ScanConfig{Adapters: []string{"axe", "pa11y"}},
		Tasks:     []*ScanTask{NewScanTask("https://example.com/", PriorityCritical, []string{"axe", "pa11y"})},
		Issues:    []Issue{{ID: "i1", DisabilityImpacts: []Impact{ImpactBlind}}},
		Warnings:  []string{"w1"},
	}

	c := s.Clone()
	c.Tasks[0].PerAdapterStatus["axe"] = AdapterCompleted
	c.Scan.Adapters[0] = "lighthouse"
	c.Issues[0].DisabilityImpacts[0] = ImpactDeaf
	c.Warnings[0] = "changed"
	*c.StartedAt = now.Add(time.Hour)

	if s.Tasks[0].PerAdapterStatus["axe"] != AdapterPending {
		t.Error("clone shares task status map")
	}
	if s.Scan.Adapters[0] != "axe" {
		t.Error("clone shares adapter list")
	}
	if s.Issues[0].DisabilityImpacts[0] != ImpactBlind {
		t.Error("clone shares issue impacts")
	}
	if s.Warnings[0] != "w1" {
		t.Error("clone shares warnings")
	}
	if !s.StartedAt.Equal(now) {
		t.Error("clone shares startedAt")
	}
}

func TestSessionJSONLayout(t *testing.T) {
	t.Parallel()

	s := &Session{ID: "abc", Kind: KindDiscovery, Status: StatusPending}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"id", "kind", "status", "createdAt", "updatedAt", "errors", "warnings"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("persisted layout is missing %q", key)
		}
	}
}

func TestSessionLookup(t *testing.T) {
	t.Parallel()

	s := &Session{
		Pages: []*DiscoveredPage{{URL: "https://example.com/"}},
		Tasks: []*ScanTask{{PageURL: "https://example.com/a"}},
	}
	if _, ok := s.Page("https://example.com/"); !ok {
		t.Error("expected page lookup to succeed")
	}
	if _, ok := s.Task("https://example.com/missing"); ok {
		t.Error("expected task lookup to fail")
	}
}
