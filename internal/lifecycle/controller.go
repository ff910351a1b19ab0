// Package lifecycle drives one call attempt from token request to
// disconnect, recording session state around the media join.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/yRomulo/AstroCall/internal/diag"
	"github.com/yRomulo/AstroCall/internal/model"
)

type State string

const (
	StateIdle            State = "idle"
	StateRequestingToken State = "requesting_token"
	StateJoining         State = "joining"
	StateInCall          State = "in_call"
	StateEnded           State = "ended"
	StateErrored         State = "errored"
)

// TokenSource mints a join credential for an identity in a room.
type TokenSource interface {
	RoomToken(ctx context.Context, room, identity string) (string, error)
}

// SessionWriter is the slice of the store the controller needs.
type SessionWriter interface {
	CreateSession(ctx context.Context, session model.Session) error
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) (bool, error)
}

type Controller struct {
	tokens   TokenSource
	store    SessionWriter
	reporter diag.Reporter
	now      func() time.Time
}

func NewController(tokens TokenSource, store SessionWriter, reporter diag.Reporter) *Controller {
	return &Controller{
		tokens:   tokens,
		store:    store,
		reporter: reporter,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Attempt is one call attempt. Terminal states are Ended and Errored; a
// retry is a fresh attempt, never a resurrected one.
type Attempt struct {
	mu       sync.Mutex
	state    State
	Room     string
	Identity string
	UserID   string
	Token    string
	Err      error
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Begin requests a token and records the active session. The active write
// is issued before the attempt is handed back for presentation; its failure
// is routed to the diagnostics sink and never blocks the join.
func (c *Controller) Begin(ctx context.Context, room, identity, userID string) (*Attempt, error) {
	attempt := &Attempt{state: StateIdle, Room: room, Identity: identity, UserID: userID}
	attempt.setState(StateRequestingToken)

	token, err := c.tokens.RoomToken(ctx, room, identity)
	if err != nil {
		attempt.Err = err
		attempt.setState(StateErrored)
		return attempt, err
	}
	attempt.Token = token
	attempt.setState(StateJoining)

	session := model.Session{
		ID:     room,
		UserID: userID,
		// Room id doubles as the astrologer id, as the directory links it.
		AstrologerID: room,
		Status:       model.SessionActive,
		StartedAt:    c.now(),
	}
	if err := c.store.CreateSession(ctx, session); err != nil {
		c.reporter.Report(diag.WriteFailure{
			Operation: "create",
			Path:      "sessions/" + room,
			Payload:   session,
			Err:       err,
		})
	}

	attempt.setState(StateInCall)
	return attempt, nil
}

// Disconnect ends the attempt. This is the in-process counterpart of the
// end-session route for callers that hold the Attempt from Begin (embedded
// clients, tests); the HTTP handler is stateless across requests and calls
// End with the room id instead. The ended write is issued on the disconnect
// path but the post-call view never waits on its durability.
func (c *Controller) Disconnect(ctx context.Context, attempt *Attempt) {
	if attempt.State() == StateEnded {
		return
	}
	c.End(ctx, attempt.Room)
	attempt.setState(StateEnded)
}

// End flips the room's session to ended. It reports whether this call did
// the flip; a session already ended (or never recorded) returns false. Write
// failures go to the diagnostics sink, never to the caller.
func (c *Controller) End(ctx context.Context, room string) bool {
	endedAt := c.now()
	ended, err := c.store.EndSession(ctx, room, endedAt)
	if err != nil {
		c.reporter.Report(diag.WriteFailure{
			Operation: "update",
			Path:      "sessions/" + room,
			Payload:   map[string]interface{}{"status": model.SessionEnded, "endedAt": endedAt},
			Err:       err,
		})
		return false
	}
	return ended
}
