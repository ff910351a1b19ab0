package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yRomulo/AstroCall/internal/ai"
	"github.com/yRomulo/AstroCall/internal/auth"
	"github.com/yRomulo/AstroCall/internal/config"
	"github.com/yRomulo/AstroCall/internal/crypto"
	"github.com/yRomulo/AstroCall/internal/diag"
	"github.com/yRomulo/AstroCall/internal/feed"
	"github.com/yRomulo/AstroCall/internal/lifecycle"
	"github.com/yRomulo/AstroCall/internal/livekit"
	"github.com/yRomulo/AstroCall/internal/model"
	"github.com/yRomulo/AstroCall/internal/presence"
	"github.com/yRomulo/AstroCall/internal/repository"
)

const (
	defaultAstroBio      = "New Astrologer"
	promotedAstroBio     = "Promoted expert"
	defaultAstroPhotoURL = "https://picsum.photos/seed/astro/400/400"
)

type Server struct {
	cfg       config.Config
	store     *repository.Store
	lifecycle *lifecycle.Controller
	presence  *presence.Tracker
	flows     *ai.Flows
	hub       *feed.Hub
	reporter  diag.Reporter
}

func NewServer(cfg config.Config, store *repository.Store, controller *lifecycle.Controller, tracker *presence.Tracker, flows *ai.Flows, hub *feed.Hub, reporter diag.Reporter) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		lifecycle: controller,
		presence:  tracker,
		flows:     flows,
		hub:       hub,
		reporter:  reporter,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/livekit/token", s.handleLiveKitToken)

	r.Post("/api/auth/signup", s.handleSignup)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/api/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/api/auth/me", s.handleGetMe)

	r.Get("/api/astrologers", s.handleListAstrologers)
	r.Get("/api/astrologers/{astrologerId}", s.handleGetAstrologer)
	r.With(s.authMiddleware, s.requirePresenceOwner).Put("/api/astrologers/me/presence", s.handleSetPresence)
	r.With(s.authMiddleware, s.requirePresenceOwner).Post("/api/astrologers/me/heartbeat", s.handleHeartbeat)

	r.With(s.authMiddleware).Get("/api/sessions", s.handleListSessions)
	r.With(s.authMiddleware).Get("/api/sessions/{sessionId}", s.handleGetSession)
	r.With(s.authMiddleware).Post("/api/sessions/{sessionId}/start", s.handleStartSession)
	r.With(s.authMiddleware).Post("/api/sessions/{sessionId}/end", s.handleEndSession)
	r.With(s.authMiddleware).Get("/api/sessions/{sessionId}/reflections", s.handleSessionReflections)

	r.With(s.authMiddleware).Post("/api/reviews", s.handleCreateReview)

	r.With(s.authMiddleware).Post("/api/ai/summary", s.handleAISummary)
	r.With(s.authMiddleware).Post("/api/ai/reflections", s.handleAIReflections)

	r.With(s.authMiddleware, s.requireAdmin).Get("/api/admin/users", s.handleListUsers)
	r.With(s.authMiddleware, s.requireAdmin).Post("/api/admin/users/{userID}/promote", s.handlePromoteUser)

	if s.hub != nil {
		r.Get("/api/ws/feed", s.hub.ServeHTTP)
	}

	return r
}

// Call token

// handleLiveKitToken mints a join token for any room/identity pair the
// caller names. No authorization beyond the two parameters is checked;
// this matches the original deployment's trust boundary and is documented
// as such rather than silently tightened.
func (s *Server) handleLiveKitToken(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	username := r.URL.Query().Get("username")
	if room == "" || username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": `Missing "room" or "username" query parameter`,
		})
		return
	}

	var missing []string
	if s.cfg.LiveKitAPIKey == "" {
		missing = append(missing, "LIVEKIT_API_KEY (ou LIVEKIT_KEY)")
	}
	if s.cfg.LiveKitAPISecret == "" {
		missing = append(missing, "LIVEKIT_API_SECRET (ou LIVEKIT_SECRET)")
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Server misconfigured: variáveis ausentes -> " + strings.Join(missing, ", "),
		})
		return
	}

	token, err := livekit.NewRoomToken(s.cfg.LiveKitAPIKey, s.cfg.LiveKitAPISecret, room, username, s.cfg.CallTokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Auth

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         userSummary `json:"user"`
}

type userSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Role = strings.TrimSpace(strings.ToLower(req.Role))
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}
	if req.Role != model.RoleUser && req.Role != model.RoleAstrologer {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}

	now := time.Now().UTC()
	user := model.UserProfile{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         emailLocalPart(req.Email),
		Role:         req.Role,
		CreatedAt:    now,
	}

	var astro *model.AstrologerProfile
	if req.Role == model.RoleAstrologer {
		astro = &model.AstrologerProfile{
			ID:        user.ID,
			Name:      user.Name,
			Bio:       defaultAstroBio,
			Languages: []string{"English"},
			IsOnline:  false,
			PhotoURL:  defaultAstroPhotoURL,
		}
	}

	if err := s.store.CreateUserWithRole(r.Context(), user, astro); err != nil {
		writeError(w, http.StatusBadRequest, "signup_failed")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         summarizeUser(user),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         summarizeUser(user),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	session, err := s.store.GetRefreshSession(r.Context(), crypto.HashToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if session.RevokedAt != nil || session.ExpiresAt.Before(time.Now().UTC()) {
		writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "user_not_found")
		return
	}
	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         summarizeUser(user),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), claims.UserID, time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	writeJSON(w, http.StatusOK, summarizeUser(user))
}

func (s *Server) issueTokens(ctx context.Context, user model.UserProfile, userAgent, ip string) (string, string, error) {
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
	})
	if err != nil {
		return "", "", err
	}

	refreshToken, err := crypto.NewRefreshToken()
	if err != nil {
		return "", "", err
	}

	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ip != "" {
		session.IPAddress = &ip
	}
	if err := s.store.CreateRefreshSession(ctx, session); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Astrologers

type astrologerSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Bio       string   `json:"bio"`
	Languages []string `json:"languages"`
	IsOnline  bool     `json:"isOnline"`
	PhotoURL  string   `json:"photoUrl"`
	Rating    *float64 `json:"rating,omitempty"`
}

func (s *Server) handleListAstrologers(w http.ResponseWriter, r *http.Request) {
	astrologers, err := s.store.ListAstrologers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]astrologerSummary, 0, len(astrologers))
	for _, astro := range astrologers {
		summary := summarizeAstrologer(astro)
		if summary.IsOnline && s.presence != nil {
			summary.IsOnline = s.presence.IsLive(r.Context(), astro.ID)
		}
		resp = append(resp, summary)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAstrologer(w http.ResponseWriter, r *http.Request) {
	astrologerID := chi.URLParam(r, "astrologerId")
	if astrologerID == "" {
		writeError(w, http.StatusBadRequest, "missing_astrologer_id")
		return
	}
	astro, err := s.store.GetAstrologer(r.Context(), astrologerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "astrologer_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, summarizeAstrologer(astro))
}

type presenceRequest struct {
	IsOnline bool `json:"isOnline"`
}

func (s *Server) handleSetPresence(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req presenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := s.presence.SetOnline(r.Context(), claims.UserID, req.IsOnline); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "astrologer_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if s.hub != nil {
		s.hub.Publish(feed.EventPresence, map[string]interface{}{
			"astrologerId": claims.UserID,
			"isOnline":     req.IsOnline,
		})
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isOnline": req.IsOnline})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.presence.Heartbeat(r.Context(), claims.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Sessions

type sessionSummary struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	AstrologerID string  `json:"astrologerId"`
	Status       string  `json:"status"`
	StartedAt    int64   `json:"startedAt"`
	EndedAt      *int64  `json:"endedAt,omitempty"`
	Rating       *int    `json:"rating,omitempty"`
	Comment      *string `json:"comment,omitempty"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var (
		sessions []model.Session
		err      error
	)
	if claims.Role == model.RoleAstrologer {
		sessions, err = s.store.ListSessionsByAstrologer(r.Context(), claims.UserID, limit)
	} else {
		sessions, err = s.store.ListSessionsByUser(r.Context(), claims.UserID, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]sessionSummary, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, summarizeSession(session))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id")
		return
	}

	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if session.UserID != claims.UserID && session.AstrologerID != claims.UserID && claims.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, summarizeSession(session))
}

type startSessionResponse struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
	State     string `json:"state"`
}

// handleStartSession runs the attempt up to in-call: token first, then the
// active-session write, then the credential is handed to the client. The
// write is best-effort; its failure reaches the diagnostics sink only.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id")
		return
	}

	identity := claims.Email
	if identity == "" {
		identity = claims.UserID
	}

	attempt, err := s.lifecycle.Begin(r.Context(), sessionID, identity, claims.UserID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "connection_error")
		return
	}

	if s.hub != nil {
		s.hub.Publish(feed.EventSessionStarted, map[string]string{
			"sessionId": sessionID,
			"userId":    claims.UserID,
		})
	}
	writeJSON(w, http.StatusOK, startSessionResponse{
		Token:     attempt.Token,
		ServerURL: s.cfg.LiveKitURL,
		State:     string(attempt.State()),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id")
		return
	}

	ended := s.lifecycle.End(r.Context(), sessionID)
	if ended && s.hub != nil {
		s.hub.Publish(feed.EventSessionEnded, map[string]string{"sessionId": sessionID})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       model.SessionEnded,
		"alreadyEnded": !ended,
		"summary":      ai.PlaceholderSummary,
	})
}

type reflectionsResponse struct {
	Summary string   `json:"summary"`
	Prompts []string `json:"prompts"`
}

// handleSessionReflections serves the post-call view. It uses the local
// generator only; the remote flow lives on its own endpoint.
func (s *Server) handleSessionReflections(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id")
		return
	}
	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	summary := ai.PlaceholderSummary
	writeJSON(w, http.StatusOK, reflectionsResponse{
		Summary: summary,
		Prompts: ai.LocalReflections(summary),
	})
}

// Reviews

type createReviewRequest struct {
	SessionID string `json:"sessionId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type reviewSummary struct {
	ID           string `json:"id"`
	SessionID    string `json:"sessionId"`
	AstrologerID string `json:"astrologerId"`
	UserID       string `json:"userId"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	CreatedAt    int64  `json:"createdAt"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id")
		return
	}
	rating := clampRating(req.Rating)

	review := model.Review{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		// Room id doubles as the astrologer id; the review form inherits
		// that conflation from the call page.
		AstrologerID: req.SessionID,
		UserID:       claims.UserID,
		Rating:       rating,
		Comment:      req.Comment,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateReview(r.Context(), review); err != nil {
		writeError(w, http.StatusBadRequest, "review_create_failed")
		return
	}

	// Denormalized session feedback and the rating average are
	// best-effort; the review itself is the durable record.
	if err := s.store.SetSessionFeedback(r.Context(), req.SessionID, rating, req.Comment); err != nil {
		s.reporter.Report(diag.WriteFailure{
			Operation: "update",
			Path:      "sessions/" + req.SessionID,
			Payload:   map[string]interface{}{"rating": rating, "comment": req.Comment},
			Err:       err,
		})
	}
	if err := s.store.RefreshAstrologerRating(r.Context(), review.AstrologerID); err != nil {
		s.reporter.Report(diag.WriteFailure{
			Operation: "update",
			Path:      "astrologer_profiles/" + review.AstrologerID,
			Err:       err,
		})
	}

	if s.hub != nil {
		s.hub.Publish(feed.EventReviewCreated, map[string]interface{}{
			"sessionId":    review.SessionID,
			"astrologerId": review.AstrologerID,
			"rating":       review.Rating,
		})
	}
	writeJSON(w, http.StatusCreated, reviewSummary{
		ID:           review.ID,
		SessionID:    review.SessionID,
		AstrologerID: review.AstrologerID,
		UserID:       review.UserID,
		Rating:       review.Rating,
		Comment:      review.Comment,
		CreatedAt:    review.CreatedAt.Unix(),
	})
}

// AI

func (s *Server) handleAISummary(w http.ResponseWriter, r *http.Request) {
	var input ai.SessionSummaryInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	out, err := s.flows.SummarizeSession(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadGateway, "generation_failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAIReflections(w http.ResponseWriter, r *http.Request) {
	var input ai.PostCallReflectionsInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	out, err := s.flows.GeneratePostCallReflections(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadGateway, "generation_failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Admin

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	users, err := s.store.ListUsers(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]userSummary, 0, len(users))
	for _, user := range users {
		resp = append(resp, summarizeUser(user))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePromoteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	astro := model.AstrologerProfile{
		ID:        user.ID,
		Name:      emailLocalPart(user.Email),
		Bio:       promotedAstroBio,
		Languages: []string{"English"},
		PhotoURL:  defaultAstroPhotoURL,
	}
	if err := s.store.PromoteToAstrologer(r.Context(), userID, astro); err != nil {
		writeError(w, http.StatusInternalServerError, "promote_failed")
		return
	}

	user.Role = model.RoleAstrologer
	writeJSON(w, http.StatusOK, summarizeUser(user))
}

// Middleware

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || !auth.CapabilitiesFor(claims.Role).ManageUsers {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requirePresenceOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || !auth.CapabilitiesFor(claims.Role).TogglePresence {
			writeError(w, http.StatusForbidden, "astrologer_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// Helpers

func summarizeUser(user model.UserProfile) userSummary {
	return userSummary{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Unix(),
	}
}

func summarizeAstrologer(astro model.AstrologerProfile) astrologerSummary {
	return astrologerSummary{
		ID:        astro.ID,
		Name:      astro.Name,
		Bio:       astro.Bio,
		Languages: astro.Languages,
		IsOnline:  astro.IsOnline,
		PhotoURL:  astro.PhotoURL,
		Rating:    astro.Rating,
	}
}

func summarizeSession(session model.Session) sessionSummary {
	summary := sessionSummary{
		ID:           session.ID,
		UserID:       session.UserID,
		AstrologerID: session.AstrologerID,
		Status:       session.Status,
		StartedAt:    session.StartedAt.Unix(),
		Rating:       session.Rating,
		Comment:      session.Comment,
	}
	if session.EndedAt != nil {
		endedAt := session.EndedAt.Unix()
		summary.EndedAt = &endedAt
	}
	return summary
}

// clampRating forces a review rating into [1,5]; the rating control only
// emits this range, the server guarantees it.
func clampRating(rating int) int {
	if rating < 1 {
		return 1
	}
	if rating > 5 {
		return 5
	}
	return rating
}

func emailLocalPart(email string) string {
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}
