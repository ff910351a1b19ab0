package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yRomulo/AstroCall/internal/database"
	"github.com/yRomulo/AstroCall/internal/db"
	"github.com/yRomulo/AstroCall/internal/model"
	"github.com/yRomulo/AstroCall/internal/repository"
)

func testStore(t *testing.T) *repository.Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := database.MigrateUp(url); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	return repository.NewStore(pool)
}

func seedUser(t *testing.T, store *repository.Store, role string) model.UserProfile {
	t.Helper()
	user := model.UserProfile{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Name:         "test",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	var astro *model.AstrologerProfile
	if role == model.RoleAstrologer {
		astro = &model.AstrologerProfile{ID: user.ID, Name: user.Name, Languages: []string{"English"}}
	}
	if err := store.CreateUserWithRole(context.Background(), user, astro); err != nil {
		t.Fatalf("CreateUserWithRole: %v", err)
	}
	return user
}

func TestSignupRoleBranching(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	user := seedUser(t, store, model.RoleUser)
	if _, err := store.GetAstrologer(ctx, user.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("GetAstrologer for plain user: err = %v, want pgx.ErrNoRows", err)
	}

	astrologer := seedUser(t, store, model.RoleAstrologer)
	profile, err := store.GetAstrologer(ctx, astrologer.ID)
	if err != nil {
		t.Fatalf("GetAstrologer: %v", err)
	}
	if profile.IsOnline {
		t.Fatal("fresh astrologer profile is online")
	}
	if len(profile.Languages) != 1 || profile.Languages[0] != "English" {
		t.Fatalf("languages = %v, want [English]", profile.Languages)
	}
}

func TestSessionEndsExactlyOnce(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user := seedUser(t, store, model.RoleUser)

	sessionID := "room-" + uuid.NewString()
	session := model.Session{
		ID:           sessionID,
		UserID:       user.ID,
		AstrologerID: sessionID,
		Status:       model.SessionActive,
		StartedAt:    time.Now().UTC(),
	}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	ended, err := store.EndSession(ctx, sessionID, time.Now().UTC())
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if !ended {
		t.Fatal("first EndSession reported no flip")
	}

	ended, err = store.EndSession(ctx, sessionID, time.Now().UTC())
	if err != nil {
		t.Fatalf("EndSession (repeat): %v", err)
	}
	if ended {
		t.Fatal("second EndSession flipped again")
	}
}

func TestEndedSessionNeverResurrects(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user := seedUser(t, store, model.RoleUser)

	sessionID := "room-" + uuid.NewString()
	session := model.Session{
		ID:           sessionID,
		UserID:       user.ID,
		AstrologerID: sessionID,
		Status:       model.SessionActive,
		StartedAt:    time.Now().UTC(),
	}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := store.EndSession(ctx, sessionID, time.Now().UTC()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	// A late retry of the active write must not flip the session back.
	session.StartedAt = time.Now().UTC()
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession (retry): %v", err)
	}

	got, err := store.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionEnded {
		t.Fatalf("status = %q, want %q", got.Status, model.SessionEnded)
	}
	if got.EndedAt == nil {
		t.Fatal("ended session has no endedAt")
	}
}

func TestCloseStaleSessions(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user := seedUser(t, store, model.RoleUser)

	staleID := "room-" + uuid.NewString()
	if err := store.CreateSession(ctx, model.Session{
		ID: staleID, UserID: user.ID, AstrologerID: staleID,
		Status: model.SessionActive, StartedAt: time.Now().UTC().Add(-3 * time.Hour),
	}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	freshID := "room-" + uuid.NewString()
	if err := store.CreateSession(ctx, model.Session{
		ID: freshID, UserID: user.ID, AstrologerID: freshID,
		Status: model.SessionActive, StartedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := store.CloseStaleSessions(ctx, time.Now().UTC().Add(-2*time.Hour), time.Now().UTC()); err != nil {
		t.Fatalf("CloseStaleSessions: %v", err)
	}

	stale, err := store.GetSession(ctx, staleID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stale.Status != model.SessionEnded {
		t.Fatalf("stale status = %q, want %q", stale.Status, model.SessionEnded)
	}
	fresh, err := store.GetSession(ctx, freshID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if fresh.Status != model.SessionActive {
		t.Fatalf("fresh status = %q, want %q", fresh.Status, model.SessionActive)
	}
}

func TestReviewUpdatesAstrologerRating(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	astrologer := seedUser(t, store, model.RoleAstrologer)
	user := seedUser(t, store, model.RoleUser)

	for i, rating := range []int{4, 2} {
		review := model.Review{
			ID:           uuid.NewString(),
			SessionID:    "room-" + uuid.NewString(),
			AstrologerID: astrologer.ID,
			UserID:       user.ID,
			Rating:       rating,
			Comment:      "ok",
			CreatedAt:    time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateReview(ctx, review); err != nil {
			t.Fatalf("CreateReview: %v", err)
		}
	}
	if err := store.RefreshAstrologerRating(ctx, astrologer.ID); err != nil {
		t.Fatalf("RefreshAstrologerRating: %v", err)
	}

	astro, err := store.GetAstrologer(ctx, astrologer.ID)
	if err != nil {
		t.Fatalf("GetAstrologer: %v", err)
	}
	if astro.Rating == nil || *astro.Rating != 3 {
		t.Fatalf("rating = %v, want 3", astro.Rating)
	}
}

func TestPromoteToAstrologer(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	user := seedUser(t, store, model.RoleUser)

	astro := model.AstrologerProfile{
		ID:        user.ID,
		Name:      user.Name,
		Bio:       "Promoted expert",
		Languages: []string{"English"},
	}
	if err := store.PromoteToAstrologer(ctx, user.ID, astro); err != nil {
		t.Fatalf("PromoteToAstrologer: %v", err)
	}

	promoted, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if promoted.Role != model.RoleAstrologer {
		t.Fatalf("role = %q, want %q", promoted.Role, model.RoleAstrologer)
	}
	profile, err := store.GetAstrologer(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetAstrologer: %v", err)
	}
	if profile.Bio != "Promoted expert" {
		t.Fatalf("bio = %q, want %q", profile.Bio, "Promoted expert")
	}
	if profile.IsOnline {
		t.Fatal("promoted astrologer starts online")
	}
}
