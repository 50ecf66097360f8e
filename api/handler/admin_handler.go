package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"sims/api/middleware"
	"sims/internal/dto"
	"sims/internal/entity"
	"sims/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var errInvalidUserID = errors.New("invalid user id")

// AdminHandler serves the Super Admin routes. The service re-checks the role on every call.
type AdminHandler struct {
	Service  *service.RoleService
	Validate *validator.Validate
}

func NewAdminHandler(svc *service.RoleService, validate *validator.Validate) *AdminHandler {
	return &AdminHandler{Service: svc, Validate: validate}
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	limit, offset := parseLimitOffset(c)
	users, err := h.Service.ListUsers(c.Request().Context(), actor, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.UserResponsesFromEntities(users))
}

func (h *AdminHandler) AssignRole(c echo.Context) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	var req dto.AssignRoleRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	roles, err := h.Service.AssignRole(c.Request().Context(), actor, userID, req.Role, stringPtr(c.RealIP()))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, rolesResponse(userID, roles))
}

func (h *AdminHandler) RemoveRole(c echo.Context) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	roleName, err := url.PathUnescape(c.Param("role"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid role"))
	}
	roles, err := h.Service.RemoveRole(c.Request().Context(), actor, userID, roleName, stringPtr(c.RealIP()))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, rolesResponse(userID, roles))
}

func (h *AdminHandler) SetCapability(c echo.Context) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	var req dto.SetCapabilityRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	capability := entity.Capability(c.Param("capability"))
	err = h.Service.SetCapability(c.Request().Context(), actor, userID, capability, *req.Enabled, stringPtr(c.RealIP()))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Capability updated"})
}

func (h *AdminHandler) SetActive(c echo.Context) error {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errUnauthorized)
	}
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	var req dto.SetActiveRequest
	if err := decodeBody(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := validatePayload(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.SetActive(c.Request().Context(), actor, userID, *req.Active, stringPtr(c.RealIP())); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Account status updated"})
}

func userIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidUserID
	}
	return id, nil
}

func rolesResponse(userID int64, roles []string) dto.RolesResponse {
	if roles == nil {
		roles = []string{}
	}
	return dto.RolesResponse{
		UserID:      userID,
		Roles:       roles,
		PrimaryRole: service.PrimaryRole(roles),
	}
}
