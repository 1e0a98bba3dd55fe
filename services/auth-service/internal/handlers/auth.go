// Package handlers is the HTTP surface of the auth service: registration,
// login with lockout, token refresh and rotation, profile updates and
// password resets.
package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fridakids/salon-api/libs/auth"
	"github.com/fridakids/salon-api/libs/db"
	"github.com/fridakids/salon-api/libs/outbox"
	"github.com/fridakids/salon-api/services/auth-service/internal/audit"
	"github.com/fridakids/salon-api/services/auth-service/internal/lockout"
	"github.com/fridakids/salon-api/services/auth-service/internal/reset"
	"github.com/fridakids/salon-api/services/auth-service/internal/sessions"
	"github.com/fridakids/salon-api/services/auth-service/internal/storage"
)

// Event topics emitted by the auth service.
const (
	EventUserCreated            = "auth.user.created.v1"
	EventPasswordResetRequested = "auth.password_reset.requested.v1"
)

type AuthHandler struct {
	pool        *db.Pool
	users       *storage.UserRepository
	audit       *audit.Repository
	outbox      *outbox.Repository
	refreshRepo *sessions.RefreshRepository
	lockout     *lockout.Guard
	reset       *reset.Repository
	logger      *slog.Logger

	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	resetURL   string
}

type Config struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	// ResetURL is the frontend page the reset email links to; the token
	// is appended as a query parameter.
	ResetURL string
}

func NewAuthHandler(
	pool *db.Pool,
	users *storage.UserRepository,
	auditRepo *audit.Repository,
	outboxRepo *outbox.Repository,
	refreshRepo *sessions.RefreshRepository,
	lockoutGuard *lockout.Guard,
	resetRepo *reset.Repository,
	logger *slog.Logger,
	cfg Config,
) *AuthHandler {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &AuthHandler{
		pool:        pool,
		users:       users,
		audit:       auditRepo,
		outbox:      outboxRepo,
		refreshRepo: refreshRepo,
		lockout:     lockoutGuard,
		reset:       resetRepo,
		logger:      logger,
		jwtSecret:   cfg.JWTSecret,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		resetTTL:    cfg.ResetTTL,
		resetURL:    cfg.ResetURL,
	}
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	CPF             string `json:"cpf"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = digitsOnly(req.Phone)
	req.CPF = digitsOnly(req.CPF)

	if msg := validateRegistration(req); msg != "" {
		jsonError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "falha ao processar senha")
		return
	}

	user := storage.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		CPF:          req.CPF,
		PasswordHash: hash,
		Role:         auth.RoleClient,
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.users.CreateTx(ctx, tx, user); err != nil {
		switch storage.DuplicateField(err) {
		case "email":
			jsonError(w, http.StatusConflict, "e-mail já cadastrado")
		case "phone":
			jsonError(w, http.StatusConflict, "telefone já cadastrado")
		case "cpf":
			jsonError(w, http.StatusConflict, "CPF já cadastrado")
		default:
			h.logger.Error("user create failed", "err", err)
			jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		}
		return
	}

	payload, err := json.Marshal(map[string]any{
		"user_id":    user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "falha ao registrar evento")
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "user",
		AggregateID:   user.ID,
		EventType:     EventUserCreated,
		Payload:       payload,
	}); err != nil {
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}

	h.respondWithTokens(w, r.Context(), user, http.StatusCreated)
}

// Login checks the lockout before the password: a locked account rejects
// even correct credentials until the lock expires.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "e-mail e senha são obrigatórios")
		return
	}

	ctx := r.Context()
	if err := h.lockout.Check(ctx, req.Email); err != nil {
		var le *lockout.LockedError
		if errors.As(err, &le) {
			mins := int(time.Until(le.Until).Minutes()) + 1
			_ = h.audit.RecordWithOutbox(ctx, h.outbox, "auth.login.locked", "", map[string]any{"email": req.Email})
			jsonError(w, http.StatusTooManyRequests,
				fmt.Sprintf("muitas tentativas de login, tente novamente em %d minutos", mins))
			return
		}
		h.logger.Error("lockout check failed", "err", err)
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			h.loginFailed(ctx, req.Email)
			jsonError(w, http.StatusUnauthorized, "e-mail ou senha incorretos")
			return
		}
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}

	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		h.loginFailed(ctx, req.Email)
		jsonError(w, http.StatusUnauthorized, "e-mail ou senha incorretos")
		return
	}

	if err := h.lockout.Success(ctx, req.Email); err != nil {
		h.logger.Error("lockout reset failed", "err", err)
	}
	h.respondWithTokens(w, ctx, user, http.StatusOK)
}

func (h *AuthHandler) loginFailed(ctx context.Context, email string) {
	if err := h.lockout.Failure(ctx, email); err != nil {
		h.logger.Error("lockout record failed", "err", err)
	}
	_ = h.audit.RecordWithOutbox(ctx, h.outbox, "auth.login.failed", "", map[string]any{"email": email})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, "refresh_token é obrigatório")
		return
	}

	ctx := r.Context()
	record, err := h.refreshRepo.GetByHash(ctx, sessions.HashToken(req.RefreshToken))
	if err != nil {
		if sessions.IsNotFound(err) {
			jsonError(w, http.StatusUnauthorized, "sessão inválida")
			return
		}
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	if record.RevokedAt != nil || record.ExpiresAt.Before(time.Now()) {
		jsonError(w, http.StatusUnauthorized, "sessão expirada")
		return
	}

	user, err := h.users.GetByID(ctx, record.UserID)
	if err != nil {
		if storage.IsNotFound(err) {
			jsonError(w, http.StatusUnauthorized, "sessão inválida")
			return
		}
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}

	// Rotation: the presented token dies here, success or not.
	if err := h.refreshRepo.Revoke(ctx, record.ID); err != nil {
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	h.respondWithTokens(w, ctx, user, http.StatusOK)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, "refresh_token é obrigatório")
		return
	}

	record, err := h.refreshRepo.GetByHash(r.Context(), sessions.HashToken(req.RefreshToken))
	if err != nil {
		if sessions.IsNotFound(err) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	if record.RevokedAt == nil {
		if err := h.refreshRepo.Revoke(r.Context(), record.ID); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := h.claimsFromHeader(r)
	if !ok {
		jsonError(w, http.StatusUnauthorized, "token inválido")
		return
	}
	user, err := h.users.GetByID(r.Context(), claims.Sub)
	if err != nil {
		if storage.IsNotFound(err) {
			jsonError(w, http.StatusUnauthorized, "token inválido")
			return
		}
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role})
}

// Audit answers GET /api/v1/auth/audit?limit=N for the salon owner: the
// most recent audit events, newest first.
func (h *AuthHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := h.claimsFromHeader(r)
	if !ok {
		jsonError(w, http.StatusUnauthorized, "token inválido")
		return
	}
	if !claims.IsAdmin() {
		jsonError(w, http.StatusForbidden, "acesso restrito ao administrador")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	if events == nil {
		events = []audit.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := h.claimsFromHeader(r)
	if !ok {
		jsonError(w, http.StatusUnauthorized, "token inválido")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = digitsOnly(req.Phone)
	if req.Name == "" {
		jsonError(w, http.StatusUnprocessableEntity, "nome é obrigatório")
		return
	}
	if len(req.Phone) < 10 {
		jsonError(w, http.StatusUnprocessableEntity, "telefone inválido")
		return
	}

	if err := h.users.UpdateProfile(r.Context(), claims.Sub, req.Name, req.Phone); err != nil {
		if field := storage.DuplicateField(err); field == "phone" {
			jsonError(w, http.StatusConflict, "telefone já cadastrado")
			return
		}
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset always answers 202 so the endpoint cannot be used to
// probe which emails exist.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		jsonError(w, http.StatusBadRequest, "e-mail é obrigatório")
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByEmail(ctx, req.Email)
	if err == nil {
		if err := h.createResetToken(ctx, user); err != nil {
			h.logger.Error("reset token create failed", "err", err)
		}
	} else if !storage.IsNotFound(err) {
		h.logger.Error("reset lookup failed", "err", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "se o e-mail estiver cadastrado, enviaremos instruções",
	})
}

func (h *AuthHandler) createResetToken(ctx context.Context, user storage.User) error {
	raw, err := newOpaqueToken()
	if err != nil {
		return err
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.reset.CreateTx(ctx, tx, user.ID, raw, time.Now().Add(h.resetTTL)); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"user_id":   user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"reset_url": h.resetURL + "?token=" + raw,
	})
	if err != nil {
		return err
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "user",
		AggregateID:   user.ID,
		EventType:     EventPasswordResetRequested,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type confirmResetRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req confirmResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	req.Password = strings.TrimSpace(req.Password)
	if req.Token == "" {
		jsonError(w, http.StatusBadRequest, "token é obrigatório")
		return
	}
	if msg := validatePassword(req.Password, req.ConfirmPassword); msg != "" {
		jsonError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	ctx := r.Context()
	userID, err := h.reset.Consume(ctx, req.Token)
	if err != nil {
		if errors.Is(err, reset.ErrInvalidToken) {
			jsonError(w, http.StatusUnauthorized, "token inválido ou expirado")
			return
		}
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "falha ao processar senha")
		return
	}
	if err := h.users.UpdatePassword(ctx, userID, hash); err != nil {
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}
	// New password invalidates every open session.
	if err := h.refreshRepo.RevokeAllForUser(ctx, userID); err != nil {
		h.logger.Error("session revocation failed", "err", err)
	}
	_ = h.audit.RecordWithOutbox(ctx, h.outbox, "auth.password.reset", userID, nil)

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, ctx context.Context, user storage.User, status int) {
	now := time.Now()
	access, err := auth.SignHS256(auth.Claims{
		Sub:   user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		Iat:   now.Unix(),
		Exp:   now.Add(h.accessTTL).Unix(),
	}, h.jwtSecret)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "falha ao emitir token")
		return
	}

	refresh, err := newOpaqueToken()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "falha ao emitir token")
		return
	}
	if _, err := h.refreshRepo.Create(ctx, user.ID, refresh, now.Add(h.refreshTTL)); err != nil {
		jsonError(w, http.StatusServiceUnavailable, "serviço temporariamente indisponível")
		return
	}

	writeJSON(w, status, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		User:         userResponse{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role},
	})
}

func (h *AuthHandler) claimsFromHeader(r *http.Request) (*auth.Claims, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), h.jwtSecret)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
