package users

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
	"github.com/gatekeeper-auth/gatekeeper/internal/rbac"
	"github.com/gatekeeper-auth/gatekeeper/internal/shared"
)

// Handler wires HTTP endpoints for personal data.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Guard
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers personal-data routes. All of them require
// the `personal_data` permission (or ownership/superuser).
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermPersonalData))
		r.Get("/personal-data/{user_id}", h.getPersonalData)
		r.Post("/add-personal-data/{user_id}", h.addPersonalData)
		r.Patch("/change-personal-data/{user_id}", h.changePersonalData)
		r.Delete("/delete-personal-data/{user_id}", h.deletePersonalData)
	})
}

type profilePatchRequest struct {
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Email     *string    `json:"email"`
	BirthDate *time.Time `json:"birth_date"`
	Phone     *string    `json:"phone"`
	City      *string    `json:"city"`
}

func (r profilePatchRequest) patch() ProfilePatch {
	return ProfilePatch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		BirthDate: r.BirthDate,
		Phone:     r.Phone,
		City:      r.City,
	}
}

type profileResponse struct {
	UserID    uuid.UUID  `json:"user_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Phone     string     `json:"phone"`
	City      string     `json:"city"`
}

func toProfileResponse(p *Profile) profileResponse {
	return profileResponse{
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		BirthDate: p.BirthDate,
		Phone:     p.Phone,
		City:      p.City,
	}
}

func (h *Handler) getPersonalData(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"personal_data": toProfileResponse(profile),
	})
}

func (h *Handler) addPersonalData(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req profilePatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.service.Add(r.Context(), userID, req.patch()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "user personal data was added successfully")
}

func (h *Handler) changePersonalData(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req profilePatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.service.Change(r.Context(), userID, req.patch()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "user personal data was changed successfully")
}

func (h *Handler) deletePersonalData(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "user_id is not a valid identifier")
		return uuid.Nil, false
	}
	return id, true
}
