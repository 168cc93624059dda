package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
	"github.com/gatekeeper-auth/gatekeeper/internal/shared"
)

// Handler wires HTTP endpoints for role management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers role routes on the provided router. Every
// route requires the `roles` permission (or ownership/superuser).
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.PermRoles))
		r.Get("/role", h.listRoles)
		r.Post("/role", h.createRole)
		r.Get("/role/{role_id}", h.getRole)
		r.Patch("/role/{role_id}", h.updateRole)
		r.Delete("/role/{role_id}", h.deleteRole)
		r.Post("/assign-roles", h.assignRoles)
		r.Post("/check-permissions", h.checkPermissions)
	})
}

type roleResponse struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{ID: role.ID, Code: role.Code, Description: role.Description}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	payload := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		payload = append(payload, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"roles":  payload,
	})
}

type createRoleRequest struct {
	Code        string `json:"code" validate:"required"`
	Description string `json:"description" validate:"required"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "role code/role description is empty")
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Code, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "New role was created",
		"role":    toRoleResponse(role),
	})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"role":   toRoleResponse(role),
	})
}

type updateRoleRequest struct {
	Code        *string `json:"code"`
	Description *string `json:"description"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, RolePatch{
		Code:        req.Code,
		Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "role data was changed successfully",
		"role":    toRoleResponse(role),
	})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRolesRequest struct {
	UserID  uuid.UUID   `json:"user_id" validate:"required"`
	RoleIDs []uuid.UUID `json:"role_ids" validate:"required,min=1"`
}

type userRoleResponse struct {
	UserID uuid.UUID `json:"user_id"`
	RoleID uuid.UUID `json:"role_id"`
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	var req assignRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "user_id/role_ids is empty")
		return
	}
	links, err := h.service.AssignRoles(r.Context(), req.UserID, req.RoleIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]userRoleResponse, 0, len(links))
	for _, link := range links {
		payload = append(payload, userRoleResponse{UserID: link.UserID, RoleID: link.RoleID})
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"status":     "success",
		"message":    "roles were assigned to user",
		"user_roles": payload,
	})
}

type checkPermissionsRequest struct {
	UserID  uuid.UUID   `json:"user_id" validate:"required"`
	RoleIDs []uuid.UUID `json:"role_ids" validate:"required,min=1"`
}

func (h *Handler) checkPermissions(w http.ResponseWriter, r *http.Request) {
	var req checkPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "user_id/role_ids is empty")
		return
	}
	has, err := h.service.HasAnyRole(r.Context(), req.UserID, req.RoleIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"message":         "permissions checked",
		"has_permissions": has,
	})
}

func roleIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "role_id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "role_id is not a valid identifier")
		return uuid.Nil, false
	}
	return id, true
}
