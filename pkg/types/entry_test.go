package types

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestImportanceWeight(t *testing.T) {
	cases := map[Importance]float64{
		ImportanceCritical: 1.0,
		ImportanceHigh:     0.75,
		ImportanceMedium:   0.5,
		ImportanceLow:      0.25,
	}
	for importance, want := range cases {
		if got := importance.Weight(); got != want {
			t.Errorf("Weight(%s) = %f, want %f", importance, got, want)
		}
	}
}

func TestImportanceWeight_UnknownDefaultsToLow(t *testing.T) {
	if got := Importance("bogus").Weight(); got != 0.25 {
		t.Errorf("unknown importance weight = %f, want 0.25", got)
	}
}

func TestValidate_RequiresAgentAndContent(t *testing.T) {
	e := &MemoryEntry{Content: "fact"}
	if err := e.Validate(); !errors.Is(err, ErrMissingAgent) {
		t.Errorf("expected ErrMissingAgent, got %v", err)
	}

	e = &MemoryEntry{AgentID: "alpha", Content: "   "}
	if err := e.Validate(); !errors.Is(err, ErrMissingContent) {
		t.Errorf("expected ErrMissingContent, got %v", err)
	}
}

func TestValidate_ContentLength(t *testing.T) {
	e := &MemoryEntry{AgentID: "alpha", Content: strings.Repeat("x", MaxContentLength+1)}
	if err := e.Validate(); !errors.Is(err, ErrContentTooLong) {
		t.Errorf("expected ErrContentTooLong, got %v", err)
	}

	e.Content = strings.Repeat("x", MaxContentLength)
	if err := e.Validate(); err != nil {
		t.Errorf("content at the limit should be valid, got %v", err)
	}
}

func TestValidate_RejectsUnknownEnums(t *testing.T) {
	e := &MemoryEntry{AgentID: "alpha", Content: "fact", Importance: "urgent"}
	if err := e.Validate(); !errors.Is(err, ErrInvalidImportance) {
		t.Errorf("expected ErrInvalidImportance, got %v", err)
	}

	e = &MemoryEntry{AgentID: "alpha", Content: "fact", Visibility: "public"}
	if err := e.Validate(); !errors.Is(err, ErrInvalidVisibility) {
		t.Errorf("expected ErrInvalidVisibility, got %v", err)
	}
}

func TestNormalize_AppliesDefaults(t *testing.T) {
	e := &MemoryEntry{AgentID: "alpha", Content: "fact"}
	e.Normalize()

	if e.Importance != ImportanceMedium {
		t.Errorf("default importance = %s, want medium", e.Importance)
	}
	if e.Visibility != VisibilityPrivate {
		t.Errorf("default visibility = %s, want private", e.Visibility)
	}
	if e.Status != StatusActive {
		t.Errorf("default status = %s, want active", e.Status)
	}
	if e.SourceAgent != "alpha" {
		t.Errorf("default source agent = %s, want alpha", e.SourceAgent)
	}
}

func TestNormalize_PreservesExplicitValues(t *testing.T) {
	e := &MemoryEntry{
		AgentID:     "alpha",
		Content:     "fact",
		Importance:  ImportanceCritical,
		Visibility:  VisibilityBroadcast,
		SourceAgent: "beta",
	}
	e.Normalize()

	if e.Importance != ImportanceCritical || e.Visibility != VisibilityBroadcast || e.SourceAgent != "beta" {
		t.Errorf("Normalize overwrote explicit values: %+v", e)
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Now()
	e := &MemoryEntry{CreatedAt: now.AddDate(0, 0, -30)}
	age := e.AgeDays(now)
	if age < 29.9 || age > 30.1 {
		t.Errorf("AgeDays = %f, want ~30", age)
	}
}
