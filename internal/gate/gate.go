// Package gate sequences the client side of repeat usage: the one-time
// feedback solicitation after the first analysis and the sign-in wall
// after the session threshold. Counters live behind a Store so the
// machine stays pure and testable.
package gate

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the gate's position in its lifecycle.
type State string

const (
	StateNew              State = "new"
	StateAwaitingFeedback State = "awaiting_feedback"
	StateNormal           State = "normal"
	StateAuthRequired     State = "auth_required"
)

// Action tells the caller what to present after an analysis completes.
type Action int

const (
	ActionNone Action = iota
	ActionAskFeedback
	ActionRequireAuth
)

func (a Action) String() string {
	switch a {
	case ActionAskFeedback:
		return "ask_feedback"
	case ActionRequireAuth:
		return "require_auth"
	default:
		return "none"
	}
}

// DefaultAuthThreshold is how many sessions an anonymous user gets
// before sign-in is required.
const DefaultAuthThreshold = 5

// CounterState is the persistent counter record.
type CounterState struct {
	SessionsTotal        int    `json:"sessions_total"`
	StreakCount          int    `json:"streak_count"`
	LastActiveDay        string `json:"last_active_day"` // YYYY-MM-DD
	FeedbackGateResolved bool   `json:"feedback_gate_resolved"`
	Authenticated        bool   `json:"authenticated"`
}

// Store persists CounterState across visits.
type Store interface {
	Load() (CounterState, error)
	Save(CounterState) error
}

// ErrAuthRequired blocks a submission until sign-in completes.
var ErrAuthRequired = errors.New("sign in to continue practicing")

// ErrEmptyFeedback rejects a solicitation submit with nothing in it;
// the explicit skip action is the way to decline.
var ErrEmptyFeedback = errors.New("add a short note or a star rating, or use skip")

// Feedback is the solicitation payload.
type Feedback struct {
	Name   string
	Email  string
	Rating int // 1..5, 0 when unset
	Text   string
}

func (f Feedback) empty() bool {
	return f.Rating == 0 && f.Text == "" && f.Name == ""
}

// Gate is the client session state machine. All methods are safe for
// concurrent use; each read-modify-write of the counters happens under
// one lock so a gate decision cannot interleave with another trigger.
type Gate struct {
	mu            sync.Mutex
	store         Store
	state         State
	counters      CounterState
	authThreshold int
}

// New loads counters and derives the starting state.
func New(store Store, authThreshold int) (*Gate, error) {
	if authThreshold <= 0 {
		authThreshold = DefaultAuthThreshold
	}
	c, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}
	g := &Gate{store: store, counters: c, authThreshold: authThreshold}
	g.state = g.derive()
	return g, nil
}

func (g *Gate) derive() State {
	switch {
	case !g.counters.Authenticated && g.counters.SessionsTotal >= g.authThreshold:
		return StateAuthRequired
	case g.counters.SessionsTotal == 0:
		return StateNew
	default:
		return StateNormal
	}
}

// State reports the current gate state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Counters returns a copy of the persistent counter record.
func (g *Gate) Counters() CounterState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counters
}

// Allow reports whether a new submission may start. It refuses while
// the sign-in wall is up.
func (g *Gate) Allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateAuthRequired && !g.counters.Authenticated {
		return ErrAuthRequired
	}
	return nil
}

// Advance records a completed analysis and decides the next gate
// action. Fallback-only completions do not advance the counters: the
// user got no real evaluation, so they spend no session.
func (g *Gate) Advance(now time.Time, fallback bool) (Action, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if fallback {
		return ActionNone, nil
	}

	prev := g.counters
	today := civilDay(now)
	g.counters.StreakCount = nextStreak(g.counters, today)
	g.counters.LastActiveDay = today
	g.counters.SessionsTotal++

	if err := g.store.Save(g.counters); err != nil {
		// Roll back so a retried Advance is not double counted.
		g.counters = prev
		return ActionNone, fmt.Errorf("save counters: %w", err)
	}

	switch {
	case !g.counters.FeedbackGateResolved && g.counters.SessionsTotal >= 1:
		g.state = StateAwaitingFeedback
		return ActionAskFeedback, nil
	case !g.counters.Authenticated && g.counters.SessionsTotal >= g.authThreshold:
		g.state = StateAuthRequired
		return ActionRequireAuth, nil
	default:
		g.state = StateNormal
		return ActionNone, nil
	}
}

// SubmitFeedback resolves the solicitation with content. An empty
// payload is rejected; the user should use Skip instead.
func (g *Gate) SubmitFeedback(f Feedback) error {
	if f.empty() {
		return ErrEmptyFeedback
	}
	if f.Rating != 0 && (f.Rating < 1 || f.Rating > 5) {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	return g.resolveFeedback()
}

// SkipFeedback resolves the solicitation without content.
func (g *Gate) SkipFeedback() error {
	return g.resolveFeedback()
}

func (g *Gate) resolveFeedback() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counters.FeedbackGateResolved = true
	if err := g.store.Save(g.counters); err != nil {
		return fmt.Errorf("save counters: %w", err)
	}
	g.state = g.derive()
	return nil
}

// SetAuthenticated records a sign-in state change from the auth
// collaborator. Signing in drops the wall; the session threshold is
// not re-armed while the user stays signed in.
func (g *Gate) SetAuthenticated(ok bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counters.Authenticated = ok
	if err := g.store.Save(g.counters); err != nil {
		return fmt.Errorf("save counters: %w", err)
	}
	if g.state == StateAuthRequired && ok {
		g.state = StateNormal
	} else if !ok {
		g.state = g.derive()
	}
	return nil
}
