package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yRomulo/AstroCall/internal/diag"
	"github.com/yRomulo/AstroCall/internal/model"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) RoomToken(_ context.Context, room, identity string) (string, error) {
	return f.token, f.err
}

type fakeStore struct {
	created   []model.Session
	createErr error
	ended     []string
	endErr    error
}

func (f *fakeStore) CreateSession(_ context.Context, session model.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, session)
	return nil
}

func (f *fakeStore) EndSession(_ context.Context, sessionID string, _ time.Time) (bool, error) {
	if f.endErr != nil {
		return false, f.endErr
	}
	f.ended = append(f.ended, sessionID)
	return true, nil
}

func TestBeginWritesActiveSessionBeforeReturning(t *testing.T) {
	store := &fakeStore{}
	controller := NewController(&fakeTokens{token: "tok"}, store, diag.NewEmitter())

	attempt, err := controller.Begin(context.Background(), "room-1", "user@example.com", "uid-1")
	if err != nil {
		t.Fatalf("begin error: %v", err)
	}
	if attempt.State() != StateInCall {
		t.Fatalf("expected in_call, got %s", attempt.State())
	}
	if attempt.Token != "tok" {
		t.Fatalf("expected token, got %q", attempt.Token)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one session write, got %d", len(store.created))
	}
	session := store.created[0]
	if session.ID != "room-1" || session.Status != model.SessionActive || session.StartedAt.IsZero() {
		t.Fatalf("unexpected session write: %+v", session)
	}
	if session.AstrologerID != "room-1" {
		t.Fatalf("expected room id as astrologer id, got %q", session.AstrologerID)
	}
}

func TestBeginTokenFailureIsTerminal(t *testing.T) {
	store := &fakeStore{}
	controller := NewController(&fakeTokens{err: errors.New("boom")}, store, diag.NewEmitter())

	attempt, err := controller.Begin(context.Background(), "room-1", "id", "uid-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempt.State() != StateErrored {
		t.Fatalf("expected errored, got %s", attempt.State())
	}
	if len(store.created) != 0 {
		t.Fatalf("no session should be written on token failure")
	}
}

func TestBeginPersistenceFailureDoesNotBlockJoin(t *testing.T) {
	store := &fakeStore{createErr: errors.New("denied")}
	emitter := diag.NewEmitter()
	var failures []diag.WriteFailure
	emitter.Subscribe(func(f diag.WriteFailure) { failures = append(failures, f) })
	controller := NewController(&fakeTokens{token: "tok"}, store, emitter)

	attempt, err := controller.Begin(context.Background(), "room-1", "id", "uid-1")
	if err != nil {
		t.Fatalf("persistence failure must not fail the join: %v", err)
	}
	if attempt.State() != StateInCall {
		t.Fatalf("expected in_call, got %s", attempt.State())
	}
	if len(failures) != 1 {
		t.Fatalf("expected one reported failure, got %d", len(failures))
	}
	if failures[0].Operation != "create" || failures[0].Path != "sessions/room-1" {
		t.Fatalf("unexpected failure context: %+v", failures[0])
	}
}

func TestDisconnectEndsOnce(t *testing.T) {
	store := &fakeStore{}
	controller := NewController(&fakeTokens{token: "tok"}, store, diag.NewEmitter())

	attempt, err := controller.Begin(context.Background(), "room-1", "id", "uid-1")
	if err != nil {
		t.Fatalf("begin error: %v", err)
	}

	controller.Disconnect(context.Background(), attempt)
	controller.Disconnect(context.Background(), attempt)

	if attempt.State() != StateEnded {
		t.Fatalf("expected ended, got %s", attempt.State())
	}
	if len(store.ended) != 1 {
		t.Fatalf("expected one ended write, got %d", len(store.ended))
	}
}

func TestDisconnectPersistenceFailureIsReportedNotRaised(t *testing.T) {
	store := &fakeStore{endErr: errors.New("denied")}
	emitter := diag.NewEmitter()
	var failures []diag.WriteFailure
	emitter.Subscribe(func(f diag.WriteFailure) { failures = append(failures, f) })
	controller := NewController(&fakeTokens{token: "tok"}, store, emitter)

	attempt, err := controller.Begin(context.Background(), "room-1", "id", "uid-1")
	if err != nil {
		t.Fatalf("begin error: %v", err)
	}
	controller.Disconnect(context.Background(), attempt)

	if attempt.State() != StateEnded {
		t.Fatalf("expected ended even when write fails, got %s", attempt.State())
	}
	if len(failures) != 1 || failures[0].Operation != "update" {
		t.Fatalf("expected one update failure, got %+v", failures)
	}
}
