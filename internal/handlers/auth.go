package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tphummel/lab_inventory/internal/db"
	"github.com/tphummel/lab_inventory/internal/metrics"
	"github.com/tphummel/lab_inventory/internal/middleware"
	"github.com/tphummel/lab_inventory/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var errTokenExpired = errors.New("token expired")

const minPasswordLen = 8

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type refreshRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (h *Handler) accessTTL() time.Duration {
	if h.AccessTTL > 0 {
		return h.AccessTTL
	}
	return 15 * time.Minute
}

func (h *Handler) refreshTTL() time.Duration {
	if h.RefreshTTL > 0 {
		return h.RefreshTTL
	}
	return 7 * 24 * time.Hour
}

func (h *Handler) bcryptCost() int {
	if h.BcryptCost > 0 {
		return h.BcryptCost
	}
	return bcrypt.DefaultCost
}

// issueSession mints and stores a fresh token pair for userID.
func (h *Handler) issueSession(userID string) (*tokenResponse, error) {
	access, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := h.now()
	s := &models.Session{
		ID:               uuid.New().String(),
		UserID:           userID,
		AccessDigest:     digest(access),
		RefreshDigest:    digest(refresh),
		AccessExpiresAt:  now.Add(h.accessTTL()),
		RefreshExpiresAt: now.Add(h.refreshTTL()),
		CreatedAt:        now,
	}
	if err := h.DB.CreateSession(s); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &tokenResponse{
		Token:        access,
		RefreshToken: refresh,
		UserID:       userID,
		ExpiresAt:    s.AccessExpiresAt,
	}, nil
}

// VerifyAccessToken implements middleware.TokenVerifier against the sessions
// table.
func (h *Handler) VerifyAccessToken(token string) (*models.Session, error) {
	s, err := h.DB.SessionByAccessDigest(digest(token))
	if err != nil {
		return nil, err
	}
	if !h.now().Before(s.AccessExpiresAt) {
		return nil, errTokenExpired
	}
	return s, nil
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	fieldErrs := map[string]string{}
	if len(req.Username) < 3 {
		fieldErrs["username"] = "username must be at least 3 characters"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil || req.Email == "" {
		fieldErrs["email"] = "email is invalid"
	}
	if len(req.Password) < minPasswordLen {
		fieldErrs["password"] = fmt.Sprintf("password must be at least %d characters", minPasswordLen)
	}
	if req.Password != req.ConfirmPassword {
		fieldErrs["confirmPassword"] = "passwords do not match"
	}
	if len(fieldErrs) > 0 {
		metrics.AuthEvent("register", "invalid")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"errors": fieldErrs,
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	u := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    h.now(),
	}
	if err := h.DB.CreateUser(u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			metrics.AuthEvent("register", "duplicate")
			writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		slog.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	metrics.AuthEvent("register", "ok")
	writeJSON(w, http.StatusCreated, map[string]string{"userId": u.ID})
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.DB.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		metrics.AuthEvent("login", "invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	resp, err := h.issueSession(u.ID)
	if err != nil {
		slog.Error("issue session", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	metrics.AuthEvent("login", "ok")
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /auth/refresh. The presented refresh token is
// consumed; a new pair is returned.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "userId and refreshToken are required")
		return
	}

	s, err := h.DB.SessionByRefreshDigest(req.UserID, digest(req.RefreshToken))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.AuthEvent("refresh", "invalid")
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}
	if !h.now().Before(s.RefreshExpiresAt) {
		_ = h.DB.DeleteSession(s.ID)
		metrics.AuthEvent("refresh", "expired")
		writeError(w, http.StatusUnauthorized, "refresh token expired")
		return
	}
	if err := h.DB.DeleteSession(s.ID); err != nil {
		// Lost a race with a concurrent refresh of the same token.
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	resp, err := h.issueSession(s.UserID)
	if err != nil {
		slog.Error("issue session", "user_id", s.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}
	metrics.AuthEvent("refresh", "ok")
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout. It revokes the session behind the
// presented access token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.DB.DeleteSession(s.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	metrics.AuthEvent("logout", "ok")
	w.WriteHeader(http.StatusNoContent)
}
