package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
	"github.com/gatekeeper-auth/gatekeeper/internal/rbac"
	"github.com/gatekeeper-auth/gatekeeper/internal/shared"
	"github.com/gatekeeper-auth/gatekeeper/internal/tokens"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tokens    *tokens.Service
	guard     rbac.Guard
	validator *validator.Validate

	loginRateLimit  int
	loginRateWindow time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokenService *tokens.Service, guard rbac.Guard, loginRateLimit int, loginRateWindow time.Duration) *Handler {
	if loginRateLimit <= 0 {
		loginRateLimit = 10
	}
	if loginRateWindow <= 0 {
		loginRateWindow = time.Minute
	}
	return &Handler{
		logger:          logger,
		service:         service,
		tokens:          tokenService,
		guard:           guard,
		validator:       validator.New(),
		loginRateLimit:  loginRateLimit,
		loginRateWindow: loginRateWindow,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	// Credential-accepting endpoints share an IP rate limit.
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(h.loginRateLimit, h.loginRateWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})
	r.Post("/refresh-token", h.refreshToken)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(""))
		r.Post("/logout", h.logout)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermUsers))
		r.Patch("/change-password/{user_id}", h.changePassword)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermPersonalData))
		r.Get("/login-history/{user_id}", h.loginHistory)
	})
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "username/password is empty")
		return
	}
	if _, err := h.service.Register(r.Context(), req.Username, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "New account was registered successfully")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "username/password is empty")
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pair, err := h.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("issue tokens", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RecordLogin(r.Context(), user.ID, r.RemoteAddr, r.UserAgent()); err != nil {
		// History is best-effort; the login itself already succeeded.
		h.logger.Warn("record login", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "JWT tokens were generated successfully",
		"tokens":  pair,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "authorization required")
		return
	}
	if err := h.tokens.RevokeToken(r.Context(), identity.TokenID, identity.ExpiresAt); err != nil {
		h.logger.Error("revoke token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "logout successful")
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	raw, ok := tokens.BearerFromRequest(r)
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "refresh token is missing")
		return
	}
	pair, err := h.tokens.Refresh(r.Context(), raw)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "JWT tokens were generated successfully",
		"tokens":  pair,
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "new password is empty")
		return
	}
	if err := h.service.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "password changed successfully")
}

type loginEventResponse struct {
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	events, err := h.service.LoginHistory(r.Context(), userID, page, size)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]loginEventResponse, 0, len(events))
	for _, ev := range events {
		payload = append(payload, loginEventResponse{IP: ev.IP, UserAgent: ev.UserAgent, CreatedAt: ev.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "user login history is available",
		"history": payload,
	})
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "user_id is not a valid identifier")
		return uuid.Nil, false
	}
	return id, true
}
