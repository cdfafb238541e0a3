// Package http exposes the dive logger's REST surface: signup/login with a
// dual-token session, and owner-scoped dive CRUD.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"divelog/internal/auth"
	"divelog/internal/config"
	"divelog/internal/crypto"
	"divelog/internal/dive"
	"divelog/internal/model"
	"divelog/internal/repository"
)

const refreshCookieName = "refresh_token"

// Store is the persistence surface the handlers need. Owner-scoped dive
// lookups that match nothing return pgx.ErrNoRows, whether the record is
// absent or belongs to someone else.
type Store interface {
	GetAccountByEmail(ctx context.Context, email string) (model.Account, error)
	GetAccountByID(ctx context.Context, accountID string) (model.Account, error)
	GetAccountByRefreshToken(ctx context.Context, token string) (model.Account, error)
	CreateAccount(ctx context.Context, account model.Account) error
	SetRefreshToken(ctx context.Context, accountID string, token *string) error

	ListDivesByOwner(ctx context.Context, ownerID string) ([]model.Dive, error)
	GetDiveByIDAndOwner(ctx context.Context, diveID, ownerID string) (model.Dive, error)
	CreateDive(ctx context.Context, dive model.Dive) error
	ReplaceDiveByIDAndOwner(ctx context.Context, dive model.Dive) (model.Dive, error)
	DeleteDiveByIDAndOwner(ctx context.Context, diveID, ownerID string) (model.Dive, error)
}

type Server struct {
	cfg   config.Config
	store Store
	redis *redis.Client
}

func NewServer(cfg config.Config, store Store, redisClient *redis.Client) *Server {
	return &Server{cfg: cfg, store: store, redis: redisClient}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
	})

	r.Route("/api/dives", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListDives)
		r.Post("/", s.handleCreateDive)
		r.Get("/{diveId}", s.handleGetDive)
		r.Put("/{diveId}", s.handleUpdateDive)
		r.Delete("/{diveId}", s.handleDeleteDive)
	})

	return r
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}
	if !validEmail(email) {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}
	if err := crypto.ValidatePassword(req.Password); err != nil {
		// Policy failures are not enumeration-sensitive; the code names
		// the exact rule.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.internalError(w, "password_hash_failed", err)
		return
	}

	now := time.Now().UTC()
	account := model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email_in_use")
			return
		}
		s.internalError(w, "account_create_failed", err)
		return
	}

	accessToken, err := s.openSession(r.Context(), w, account.ID)
	if err != nil {
		s.internalError(w, "session_open_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Email: email, AccessToken: accessToken})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}
	if s.loginBlocked(r.Context(), email) {
		writeError(w, http.StatusTooManyRequests, "too_many_attempts")
		return
	}

	account, err := s.store.GetAccountByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Same answer as a wrong password; the caller learns nothing
			// about which credential was bad.
			s.recordLoginFailure(r.Context(), email)
			writeError(w, http.StatusBadRequest, "invalid_credentials")
			return
		}
		s.internalError(w, "account_lookup_failed", err)
		return
	}
	if err := crypto.CheckPassword(account.PasswordHash, req.Password); err != nil {
		s.recordLoginFailure(r.Context(), email)
		writeError(w, http.StatusBadRequest, "invalid_credentials")
		return
	}
	s.clearLoginFailures(r.Context(), email)

	accessToken, err := s.openSession(r.Context(), w, account.ID)
	if err != nil {
		s.internalError(w, "session_open_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Email: email, AccessToken: accessToken})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "missing_refresh_token")
		return
	}

	// The stored-token lookup is what detects a revoked or rotated-away
	// token; a valid signature alone is not enough.
	account, err := s.store.GetAccountByRefreshToken(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.internalError(w, "refresh_lookup_failed", err)
		return
	}

	claims, err := auth.ParseToken(s.cfg.JWTRefreshSecret, cookie.Value)
	if err != nil {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if claims.Subject != account.ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	accessToken, err := auth.NewToken(s.cfg.JWTAccessSecret, s.cfg.JWTIssuer, account.ID, s.cfg.AccessTokenTTL)
	if err != nil {
		s.internalError(w, "token_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// handleLogout never fails visibly: with no cookie it is a no-op, and a
// second logout in a row succeeds the same way.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		if account, err := s.store.GetAccountByRefreshToken(r.Context(), cookie.Value); err == nil {
			_ = s.store.SetRefreshToken(r.Context(), account.ID, nil)
		}
	}
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDives(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	dives, err := s.store.ListDivesByOwner(r.Context(), ownerID)
	if err != nil {
		s.internalError(w, "dives_list_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dives)
}

func (s *Server) handleGetDive(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	diveID, ok := diveIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no_such_dive")
		return
	}

	record, err := s.store.GetDiveByIDAndOwner(r.Context(), diveID, ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "no_such_dive")
			return
		}
		s.internalError(w, "dive_fetch_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleCreateDive(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	record, ok := s.decodeAndNormalize(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	record.ID = uuid.NewString()
	record.OwnerID = ownerID
	record.CreatedAt = now
	record.UpdatedAt = now
	if err := s.store.CreateDive(r.Context(), *record); err != nil {
		s.internalError(w, "dive_create_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleUpdateDive(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	diveID, ok := diveIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no_such_dive")
		return
	}
	record, ok := s.decodeAndNormalize(w, r)
	if !ok {
		return
	}

	record.ID = diveID
	record.OwnerID = ownerID
	record.UpdatedAt = time.Now().UTC()
	updated, err := s.store.ReplaceDiveByIDAndOwner(r.Context(), *record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "no_such_dive")
			return
		}
		s.internalError(w, "dive_update_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteDive(w http.ResponseWriter, r *http.Request) {
	ownerID := ownerFromContext(r.Context())
	diveID, ok := diveIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "no_such_dive")
		return
	}

	deleted, err := s.store.DeleteDiveByIDAndOwner(r.Context(), diveID, ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "no_such_dive")
			return
		}
		s.internalError(w, "dive_delete_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, deleted)
}

// decodeAndNormalize runs the payload through the validation pipeline and
// writes the error response itself when the payload is bad.
func (s *Server) decodeAndNormalize(w http.ResponseWriter, r *http.Request) (*model.Dive, bool) {
	var raw dive.RawDive
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return nil, false
	}
	unitSystem, ok := dive.ParseUnitSystem(raw.UnitSystem)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_unit_system")
		return nil, false
	}

	record, err := dive.NormalizeAndValidate(raw, unitSystem)
	if err != nil {
		var verr *dive.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":       "Please fill in all required fields",
				"emptyFields": verr.Fields,
			})
			return nil, false
		}
		s.internalError(w, "dive_normalize_failed", err)
		return nil, false
	}
	return record, true
}

// openSession issues both tokens, records the refresh token as the
// account's single active session and delivers it as an http-only cookie.
func (s *Server) openSession(ctx context.Context, w http.ResponseWriter, accountID string) (string, error) {
	accessToken, err := auth.NewToken(s.cfg.JWTAccessSecret, s.cfg.JWTIssuer, accountID, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", err
	}
	refreshToken, err := auth.NewToken(s.cfg.JWTRefreshSecret, s.cfg.JWTIssuer, accountID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return "", err
	}
	if err := s.store.SetRefreshToken(ctx, accountID, &refreshToken); err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/api/user",
		MaxAge:   int(s.cfg.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
	return accessToken, nil
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/user",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTAccessSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		// The subject must still resolve to a live account.
		account, err := s.store.GetAccountByID(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown_account")
			return
		}

		ctx := context.WithValue(r.Context(), ownerKey{}, account.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ownerKey struct{}

func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// Failed-login throttling piggybacks on the optionally configured redis
// client; without redis every login attempt goes straight to the store.

func loginAttemptKey(email string) string {
	return fmt.Sprintf("login_attempts:%s", email)
}

func (s *Server) loginBlocked(ctx context.Context, email string) bool {
	if s.redis == nil {
		return false
	}
	count, err := s.redis.Get(ctx, loginAttemptKey(email)).Int()
	if err != nil {
		return false
	}
	return count >= s.cfg.LoginMaxAttempts
}

func (s *Server) recordLoginFailure(ctx context.Context, email string) {
	if s.redis == nil {
		return
	}
	key := loginAttemptKey(email)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	if count == 1 {
		_ = s.redis.Expire(ctx, key, s.cfg.LoginWindow).Err()
	}
}

func (s *Server) clearLoginFailures(ctx context.Context, email string) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(ctx, loginAttemptKey(email)).Err()
}

// diveIDParam validates the id shape; a malformed id is indistinguishable
// from a missing record.
func diveIDParam(r *http.Request) (string, bool) {
	diveID := chi.URLParam(r, "diveId")
	if _, err := uuid.Parse(diveID); err != nil {
		return "", false
	}
	return diveID, true
}

func (s *Server) internalError(w http.ResponseWriter, code string, err error) {
	log.Printf("%s: %v", code, err)
	if s.cfg.IsProduction() {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":  "server_error",
		"detail": err.Error(),
	})
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
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
