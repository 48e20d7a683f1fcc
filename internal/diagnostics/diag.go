package diagnostics

import (
	"sync"
	"time"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes pushed by the room light.
const (
	FrameOverrun   = "FRAME.OVERRUN"
	SinkFailed     = "FRAME.SINK"
	ImportSkipped  = "STATE.IMPORT_SKIPPED"
	ImportRejected = "STATE.IMPORT_REJECTED"
	ImportLoose    = "STATE.IMPORT_NON_STRICT"
	SaveFailed     = "STATE.SAVE"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
	Time           time.Time      `json:"time"`
}

// Hub fans diagnostics out to subscribers and keeps the most recent ones
// for late joiners.
type Hub struct {
	mu     sync.Mutex
	recent []Diagnostic
	keep   int
	subs   map[chan Diagnostic]struct{}
}

func NewHub(keep int) *Hub {
	return &Hub{keep: keep, subs: map[chan Diagnostic]struct{}{}}
}

// Push never blocks; a subscriber that is not keeping up misses messages.
func (h *Hub) Push(d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, d)
	if len(h.recent) > h.keep {
		h.recent = h.recent[len(h.recent)-h.keep:]
	}
	for ch := range h.subs {
		select {
		case ch <- d:
		default:
		}
	}
}

// Subscribe returns the retained diagnostics and a channel of new ones.
// cancel must be called to release it.
func (h *Hub) Subscribe() (recent []Diagnostic, ch <-chan Diagnostic, cancel func()) {
	c := make(chan Diagnostic, 16)
	h.mu.Lock()
	h.subs[c] = struct{}{}
	recent = append([]Diagnostic(nil), h.recent...)
	h.mu.Unlock()
	return recent, c, func() {
		h.mu.Lock()
		delete(h.subs, c)
		h.mu.Unlock()
	}
}
