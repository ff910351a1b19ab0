package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yRomulo/AstroCall/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Users

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.UserProfile, error) {
	var user model.UserProfile
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM user_profiles
		WHERE email = $1
	`, email)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.CreatedAt)
	return user, err
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.UserProfile, error) {
	var user model.UserProfile
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM user_profiles
		WHERE id = $1
	`, userID)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.CreatedAt)
	return user, err
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]model.UserProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM user_profiles
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.UserProfile
	for rows.Next() {
		var user model.UserProfile
		if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateUserWithRole inserts the profile and, for astrologer sign-ups, the
// astrologer profile in the same transaction.
func (s *Store) CreateUserWithRole(ctx context.Context, user model.UserProfile, astro *model.AstrologerProfile) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO user_profiles (id, email, password_hash, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.PasswordHash, user.Name, user.Role, user.CreatedAt)
	if err != nil {
		return err
	}

	if astro != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO astrologer_profiles (id, name, bio, languages, is_online, photo_url)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, astro.ID, astro.Name, astro.Bio, astro.Languages, astro.IsOnline, astro.PhotoURL)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// PromoteToAstrologer overwrites the role and creates (or refreshes) the
// astrologer profile atomically. The prior role value is replaced, not
// merged.
func (s *Store) PromoteToAstrologer(ctx context.Context, userID string, astro model.AstrologerProfile) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE user_profiles SET role = 'astrologer' WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO astrologer_profiles (id, name, bio, languages, is_online, photo_url)
		VALUES ($1, $2, $3, $4, false, $5)
		ON CONFLICT (id) DO UPDATE SET name = $2, bio = $3, languages = $4, photo_url = $5
	`, astro.ID, astro.Name, astro.Bio, astro.Languages, astro.PhotoURL)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Astrologers

func (s *Store) ListAstrologers(ctx context.Context) ([]model.AstrologerProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, bio, languages, is_online, photo_url, rating
		FROM astrologer_profiles
		ORDER BY is_online DESC, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var astrologers []model.AstrologerProfile
	for rows.Next() {
		var astro model.AstrologerProfile
		if err := rows.Scan(&astro.ID, &astro.Name, &astro.Bio, &astro.Languages, &astro.IsOnline, &astro.PhotoURL, &astro.Rating); err != nil {
			return nil, err
		}
		astrologers = append(astrologers, astro)
	}
	return astrologers, rows.Err()
}

func (s *Store) GetAstrologer(ctx context.Context, astrologerID string) (model.AstrologerProfile, error) {
	var astro model.AstrologerProfile
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, bio, languages, is_online, photo_url, rating
		FROM astrologer_profiles
		WHERE id = $1
	`, astrologerID)
	err := row.Scan(&astro.ID, &astro.Name, &astro.Bio, &astro.Languages, &astro.IsOnline, &astro.PhotoURL, &astro.Rating)
	return astro, err
}

func (s *Store) SetAstrologerOnline(ctx context.Context, astrologerID string, online bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE astrologer_profiles SET is_online = $1 WHERE id = $2
	`, online, astrologerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RefreshAstrologerRating recomputes the average review rating.
func (s *Store) RefreshAstrologerRating(ctx context.Context, astrologerID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE astrologer_profiles
		SET rating = (SELECT AVG(rating)::float8 FROM reviews WHERE astrologer_id = $1)
		WHERE id = $1
	`, astrologerID)
	return err
}

// Sessions

// CreateSession records the active session. A duplicate id is left
// untouched so an already-ended session can never flip back to active.
func (s *Store) CreateSession(ctx context.Context, session model.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, astrologer_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, session.ID, session.UserID, session.AstrologerID, session.Status, session.StartedAt)
	return err
}

// EndSession flips active to ended exactly once. Returns false when the
// session was already ended (or never started).
func (s *Store) EndSession(ctx context.Context, sessionID string, endedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'ended', ended_at = $1
		WHERE id = $2 AND status = 'active'
	`, endedAt, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, astrologer_id, status, started_at, ended_at, rating, comment
		FROM sessions
		WHERE id = $1
	`, sessionID)
	err := row.Scan(&session.ID, &session.UserID, &session.AstrologerID, &session.Status,
		&session.StartedAt, &session.EndedAt, &session.Rating, &session.Comment)
	return session, err
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]model.Session, error) {
	return s.listSessions(ctx, `user_id`, userID, limit)
}

func (s *Store) ListSessionsByAstrologer(ctx context.Context, astrologerID string, limit int) ([]model.Session, error) {
	return s.listSessions(ctx, `astrologer_id`, astrologerID, limit)
}

func (s *Store) listSessions(ctx context.Context, column, value string, limit int) ([]model.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, astrologer_id, status, started_at, ended_at, rating, comment
		FROM sessions
		WHERE `+column+` = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, value, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var session model.Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.AstrologerID, &session.Status,
			&session.StartedAt, &session.EndedAt, &session.Rating, &session.Comment); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SetSessionFeedback denormalizes rating and comment onto the session, as
// the review form does.
func (s *Store) SetSessionFeedback(ctx context.Context, sessionID string, rating int, comment string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET rating = $1, comment = $2 WHERE id = $3
	`, rating, comment, sessionID)
	return err
}

// CloseStaleSessions ends sessions whose clients vanished without the ended
// write. It only ever moves active to ended.
func (s *Store) CloseStaleSessions(ctx context.Context, startedBefore, endedAt time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'ended', ended_at = $1
		WHERE status = 'active' AND started_at < $2
	`, endedAt, startedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Reviews

func (s *Store) CreateReview(ctx context.Context, review model.Review) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reviews (id, session_id, astrologer_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, review.ID, review.SessionID, review.AstrologerID, review.UserID, review.Rating, review.Comment, review.CreatedAt)
	return err
}

func (s *Store) ListReviewsByAstrologer(ctx context.Context, astrologerID string, limit int) ([]model.Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, astrologer_id, user_id, rating, comment, created_at
		FROM reviews
		WHERE astrologer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, astrologerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var review model.Review
		if err := rows.Scan(&review.ID, &review.SessionID, &review.AstrologerID, &review.UserID,
			&review.Rating, &review.Comment, &review.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// Refresh sessions

func (s *Store) CreateRefreshSession(ctx context.Context, session model.RefreshSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_token_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt, session.RevokedAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	var session model.RefreshSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address
		FROM refresh_token_sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &session.CreatedAt,
		&session.ExpiresAt, &session.RevokedAt, &session.UserAgent, &session.IPAddress)
	return session, err
}

func (s *Store) RevokeRefreshSession(ctx context.Context, sessionID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE refresh_token_sessions SET revoked_at = $1 WHERE id = $2`, revokedAt, sessionID)
	return err
}

func (s *Store) RevokeRefreshSessionsByUser(ctx context.Context, userID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_token_sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL
	`, revokedAt, userID)
	return err
}
