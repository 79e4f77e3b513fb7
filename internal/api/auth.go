package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/jongsul/lostfound/internal/auth"
	"github.com/jongsul/lostfound/internal/mailer"
	"github.com/jongsul/lostfound/internal/model"
	"github.com/jongsul/lostfound/internal/store"
	"github.com/jongsul/lostfound/internal/verify"
)

// AuthHandler handles registration, verification and login.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
	Verifier  *verify.Repo
	Mailer    mailer.Sender
}

type requestCodeRequest struct {
	Email string `json:"email"`
}

type confirmCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	ContactInfo string `json:"contact_info"`
	SignupToken string `json:"signup_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// RequestCode handles POST /api/users/verify/request. It always answers 200
// for well-formed input so the endpoint cannot be used to probe accounts.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	if h.Verifier == nil {
		jsonError(w, http.StatusServiceUnavailable, "signup is not enabled")
		return
	}

	var req requestCodeRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		jsonError(w, http.StatusBadRequest, "email required")
		return
	}

	existing, err := store.GetUserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusBadRequest, "email already registered")
		return
	}

	code, err := h.Verifier.CreateCode(r.Context(), req.Email)
	if err != nil {
		slog.Error("creating verification code failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.Mailer.SendVerificationCode(r.Context(), req.Email, code); err != nil {
		slog.Error("sending verification code failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to send verification email")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

// ConfirmCode handles POST /api/users/verify/confirm.
func (h *AuthHandler) ConfirmCode(w http.ResponseWriter, r *http.Request) {
	if h.Verifier == nil {
		jsonError(w, http.StatusServiceUnavailable, "signup is not enabled")
		return
	}

	var req confirmCodeRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Code == "" {
		jsonError(w, http.StatusBadRequest, "email and code required")
		return
	}

	token, err := h.Verifier.Verify(r.Context(), req.Email, req.Code)
	switch {
	case errors.Is(err, verify.ErrExpired):
		jsonError(w, http.StatusBadRequest, "verification code expired, request a new one")
		return
	case errors.Is(err, verify.ErrMismatch):
		jsonError(w, http.StatusBadRequest, "verification code does not match")
		return
	case err != nil:
		slog.Error("verifying code failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"signup_token": token})
}

// Register handles POST /api/users/register. A valid signup token proves
// the email was verified minutes ago.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		jsonError(w, http.StatusBadRequest, "email, password and name required")
		return
	}

	if err := auth.ValidateSignupToken(h.JWTSecret, req.SignupToken, req.Email); err != nil {
		jsonError(w, http.StatusUnauthorized, "email not verified")
		return
	}

	existing, err := store.GetUserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusBadRequest, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Email, string(hash),
		req.Name, req.ContactInfo, model.RoleUser)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	slog.Info("user registered", "user", user.ID, "email", user.Email)
	jsonResponse(w, http.StatusCreated, user)
}

// Login handles POST /api/users/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Email, user.Role)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", user.ID)
	jsonResponse(w, http.StatusOK, tokenResponse{Token: token})
}

// Logout handles POST /api/users/logout by revoking the token's JTI.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/users/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}

	jsonResponse(w, http.StatusOK, user)
}
