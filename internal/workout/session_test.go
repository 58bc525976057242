package workout

import (
	"errors"
	"testing"
	"time"
)

func TestTrackerStart(t *testing.T) {
	var tr Tracker
	now := time.Now().UTC()

	s, err := tr.Start("s1", now)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.ID != "s1" || s.Status != StatusOngoing || !s.StartedAt.Equal(now) {
		t.Errorf("session = %+v", s)
	}
	if !tr.Active() || !tr.Ongoing() {
		t.Error("tracker should be ongoing")
	}

	// A second start must fail and leave the first session current.
	if _, err := tr.Start("s2", now); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Errorf("second start: got %v, want ErrSessionAlreadyActive", err)
	}
	if cur, ok := tr.Current(); !ok || cur.ID != "s1" {
		t.Errorf("current = %+v, %v", cur, ok)
	}
}

func TestTrackerFinishFlow(t *testing.T) {
	var tr Tracker
	now := time.Now().UTC()
	tr.Start("s1", now)

	if err := tr.RequestFinish(); err != nil {
		t.Fatalf("request finish: %v", err)
	}
	if tr.Ongoing() {
		t.Error("finalizing session should not accept entries")
	}
	if !tr.Active() {
		t.Error("finalizing session is still active")
	}
	// Finishing twice is an error.
	if err := tr.RequestFinish(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("second request: got %v", err)
	}

	end := now.Add(time.Hour)
	s, err := tr.Finalize("  hyvä treeni  ", end)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if s.Status != StatusCompleted {
		t.Errorf("status = %q", s.Status)
	}
	if s.EndedAt == nil || !s.EndedAt.Equal(end) {
		t.Errorf("endedAt = %v", s.EndedAt)
	}
	if s.Notes != "hyvä treeni" {
		t.Errorf("notes = %q", s.Notes)
	}
	if tr.Active() {
		t.Error("tracker should be idle after finalize")
	}
}

func TestTrackerFinalizeSkipsNotesStep(t *testing.T) {
	// Finalize straight from ongoing, without RequestFinish.
	var tr Tracker
	tr.Start("s1", time.Now().UTC())
	if _, err := tr.Finalize("", time.Now().UTC()); err != nil {
		t.Fatalf("finalize from ongoing: %v", err)
	}
}

func TestTrackerIdleErrors(t *testing.T) {
	var tr Tracker
	if err := tr.RequestFinish(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("request finish: got %v", err)
	}
	if _, err := tr.Finalize("", time.Now().UTC()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("finalize: got %v", err)
	}
	if _, err := tr.Discard(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("discard: got %v", err)
	}
	if _, ok := tr.Current(); ok {
		t.Error("idle tracker has no current session")
	}
}

func TestTrackerDiscard(t *testing.T) {
	var tr Tracker
	tr.Start("s1", time.Now().UTC())

	id, err := tr.Discard()
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if id != "s1" {
		t.Errorf("id = %q", id)
	}
	if tr.Active() {
		t.Error("tracker should be idle after discard")
	}
	// And a fresh start works again.
	if _, err := tr.Start("s2", time.Now().UTC()); err != nil {
		t.Errorf("restart: %v", err)
	}
}

func TestTrackerCopyRestore(t *testing.T) {
	// The logbook copies the tracker before a transition and restores the
	// copy when the store write fails. A value copy must be independent.
	var tr Tracker
	tr.Start("s1", time.Now().UTC())

	saved := tr
	tr.Finalize("", time.Now().UTC())
	if tr.Active() {
		t.Fatal("finalize should clear the tracker")
	}

	tr = saved
	if !tr.Ongoing() {
		t.Error("restored tracker lost its session")
	}
	if cur, _ := tr.Current(); cur.ID != "s1" {
		t.Errorf("restored current = %q", cur.ID)
	}
}
