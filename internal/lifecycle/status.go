// Package lifecycle is the request-lifecycle contract shared by the stores:
// the Idle → Pending → (Idle|Error) status machine, the failure taxonomy,
// a single-flight guard keyed by intent and a sequencing token for
// wholesale replacements.
package lifecycle

// Status is the externally visible state of a store's intents.
type Status int

const (
	// StatusIdle means nothing is in flight and the last intent succeeded
	// (a fulfilled intent collapses back to Idle).
	StatusIdle Status = iota
	// StatusPending means at least one intent is in flight.
	StatusPending
	// StatusError means nothing is in flight and the last settled intent failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Tracker records in-flight intents and the last failure message.
// It is not safe for concurrent use; stores call it under their own lock.
type Tracker struct {
	inflight int
	lastErr  string
}

// Begin marks an intent as issued. Issuing clears any previous failure.
func (t *Tracker) Begin() {
	t.inflight++
	t.lastErr = ""
}

// Settle marks an intent as finished. The last intent to settle decides
// the outcome: a failure records its message, a success clears it.
func (t *Tracker) Settle(err error) {
	if t.inflight > 0 {
		t.inflight--
	}
	if err != nil {
		t.lastErr = Message(err)
		return
	}
	t.lastErr = ""
}

// Fail records a failure that never went in flight (validation).
func (t *Tracker) Fail(err error) {
	if err != nil {
		t.lastErr = Message(err)
	}
}

// Reset drops any recorded failure. In-flight intents are unaffected.
func (t *Tracker) Reset() {
	t.lastErr = ""
}

// Status derives the current status.
func (t *Tracker) Status() Status {
	switch {
	case t.inflight > 0:
		return StatusPending
	case t.lastErr != "":
		return StatusError
	}
	return StatusIdle
}

// LastError is non-empty iff Status() == StatusError.
func (t *Tracker) LastError() string {
	if t.Status() != StatusError {
		return ""
	}
	return t.lastErr
}

// Sequencer hands out issue-order tickets so that a slow wholesale
// replacement cannot overwrite a newer one that settled first.
type Sequencer struct {
	issued  uint64
	applied uint64
}

// Next returns the ticket for a newly issued request.
func (s *Sequencer) Next() uint64 {
	s.issued++
	return s.issued
}

// Admit reports whether a result carrying ticket may still be applied,
// and records it as the newest applied ticket when it may.
func (s *Sequencer) Admit(ticket uint64) bool {
	if ticket < s.applied {
		return false
	}
	s.applied = ticket
	return true
}
