// Package ratelimit implements fixed-window admission ceilings keyed by
// (subject, limit class). Denial is a value carrying the window's reset
// time, never an error.
package ratelimit

import (
	"sync"
	"time"
)

// Class identifies which ceiling applies to a check.
type Class string

const (
	// ClassGlobal caps total admitted requests across all subjects.
	ClassGlobal Class = "global"
	// ClassRequest caps general requests per subject.
	ClassRequest Class = "request"
	// ClassAI caps generation calls per subject, stricter than ClassRequest.
	ClassAI Class = "ai"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type window struct {
	start time.Time
	count int
}

// Limiter admits requests against per-class fixed windows.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limits  map[Class]int
	windows map[string]*window
	now     func() time.Time
}

// New creates a Limiter. A ceiling of zero or less disables that class.
func New(windowSize time.Duration, global, subject, ai int) *Limiter {
	if windowSize <= 0 {
		windowSize = time.Minute
	}
	return &Limiter{
		window: windowSize,
		limits: map[Class]int{
			ClassGlobal:  global,
			ClassRequest: subject,
			ClassAI:      ai,
		},
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow checks the subject against the class ceiling and increments the
// window counter on admission. An expired window is replaced with a new
// one starting at the current instant.
func (l *Limiter) Allow(subject string, class Class) Decision {
	limit, ok := l.limits[class]
	if !ok || limit <= 0 {
		return Decision{Allowed: true}
	}

	key := keyFor(subject, class)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		w = &window{start: now}
		l.windows[key] = w
	}

	resetAt := w.start.Add(l.window)
	if w.count >= limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	w.count++
	return Decision{Allowed: true, Remaining: limit - w.count, ResetAt: resetAt}
}

// keyFor builds the window key. The global class shares one window across
// all subjects.
func keyFor(subject string, class Class) string {
	if class == ClassGlobal {
		return string(class)
	}
	return subject + "|" + string(class)
}
