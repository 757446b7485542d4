package models

import (
	"errors"
	"testing"
)

func TestHarvestSessionFinishOnce(t *testing.T) {
	s := NewHarvestSession(Target{ShopID: "1", ItemID: "2"}, 5)
	if s.Status != StatusRunning {
		t.Fatalf("new session status = %s, want running", s.Status)
	}

	if !s.Finish(StatusCompleted, nil) {
		t.Fatalf("first Finish() = false, want true")
	}
	if s.Finish(StatusFailed, errors.New("late")) {
		t.Fatalf("second Finish() = true, want false")
	}
	if s.Status != StatusCompleted || s.Err != nil {
		t.Fatalf("session = %s/%v, want completed/nil", s.Status, s.Err)
	}
}

func TestHarvestSessionFinishRejectsRunning(t *testing.T) {
	s := NewHarvestSession(Target{}, 1)
	if s.Finish(StatusRunning, nil) {
		t.Fatalf("Finish(running) = true, want false")
	}
}

func TestHarvestSessionFail(t *testing.T) {
	boom := errors.New("boom")

	empty := NewHarvestSession(Target{}, 3)
	empty.Fail(boom)
	if empty.Status != StatusFailed || !errors.Is(empty.Err, boom) {
		t.Fatalf("empty session = %s/%v, want failed/boom", empty.Status, empty.Err)
	}

	partial := NewHarvestSession(Target{}, 3)
	partial.Add(&ReviewRecord{Source: SourceAPI, Comment: "ok"})
	partial.Fail(boom)
	if partial.Status != StatusPartiallyFailed {
		t.Fatalf("partial session status = %s, want partially_failed", partial.Status)
	}
}

func TestHarvestSessionAddRespectsCap(t *testing.T) {
	s := NewHarvestSession(Target{}, 2)
	for i := 0; i < 2; i++ {
		if !s.Add(&ReviewRecord{Source: SourceAPI, Comment: "x"}) {
			t.Fatalf("Add() #%d = false, want true", i)
		}
	}
	if s.Add(&ReviewRecord{Source: SourceAPI, Comment: "x"}) {
		t.Fatalf("Add() past cap = true, want false")
	}
	if !s.Full() || len(s.Collected) != 2 {
		t.Fatalf("collected = %d, full = %v", len(s.Collected), s.Full())
	}
}

func TestMoreSevere(t *testing.T) {
	tests := []struct {
		a, b, want Status
	}{
		{StatusCompleted, StatusCompleted, StatusCompleted},
		{StatusCompleted, StatusPartiallyFailed, StatusPartiallyFailed},
		{StatusFailed, StatusPartiallyFailed, StatusFailed},
		{StatusPartiallyFailed, StatusFailed, StatusFailed},
		{StatusCompleted, StatusFailed, StatusFailed},
	}
	for _, tt := range tests {
		if got := MoreSevere(tt.a, tt.b); got != tt.want {
			t.Fatalf("MoreSevere(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}
