package workout

import (
	"strings"
	"time"
)

// trackerState is the client-side lifecycle position. Finalizing is the
// optional notes/summary step between requesting a finish and committing it.
type trackerState int

const (
	stateIdle trackerState = iota
	stateOngoing
	stateFinalizing
)

// Tracker is the session state machine. It is a plain value: the Logbook
// copies it before a transition that needs a store write and restores the
// copy if the write fails, so a failed operation leaves the machine exactly
// as it was. Only the Logbook mutates a Tracker; everyone else sees session
// values it hands out.
//
// At most one session is active at a time. Starting a second one fails
// instead of silently abandoning the first.
type Tracker struct {
	state   trackerState
	current Session
}

// Active reports whether a session is current (ongoing or finalizing).
func (t *Tracker) Active() bool { return t.state != stateIdle }

// Current returns a copy of the current session, if any.
func (t *Tracker) Current() (Session, bool) {
	if t.state == stateIdle {
		return Session{}, false
	}
	return t.current, true
}

// Ongoing reports whether entries may be recorded right now.
func (t *Tracker) Ongoing() bool { return t.state == stateOngoing }

// Start transitions Idle -> Ongoing with a pre-allocated session id.
func (t *Tracker) Start(id string, now time.Time) (Session, error) {
	if t.state != stateIdle {
		return Session{}, ErrSessionAlreadyActive
	}
	t.current = Session{
		ID:        id,
		Status:    StatusOngoing,
		StartedAt: now,
	}
	t.state = stateOngoing
	return t.current, nil
}

// RequestFinish transitions Ongoing -> Finalizing. It opens the notes step
// and touches nothing persisted.
func (t *Tracker) RequestFinish() error {
	if t.state != stateOngoing {
		return ErrNoActiveSession
	}
	t.state = stateFinalizing
	return nil
}

// Finalize completes the current session from either Ongoing or Finalizing
// and clears it. The returned session carries the completed status, end time,
// and trimmed notes for the caller to persist.
func (t *Tracker) Finalize(notes string, now time.Time) (Session, error) {
	if t.state == stateIdle {
		return Session{}, ErrNoActiveSession
	}
	done := t.current
	done.Status = StatusCompleted
	done.EndedAt = &now
	done.Notes = trimNotes(notes)
	t.state = stateIdle
	t.current = Session{}
	return done, nil
}

// Discard abandons the current session and clears it, returning the id whose
// record the caller deletes. The caller must have confirmed the session has
// zero entries; the machine does not query the store.
func (t *Tracker) Discard() (string, error) {
	if t.state == stateIdle {
		return "", ErrNoActiveSession
	}
	id := t.current.ID
	t.state = stateIdle
	t.current = Session{}
	return id, nil
}

func trimNotes(s string) string {
	return strings.TrimSpace(s)
}
