package profile

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinika/clinika/internal/domain/identity"
	"github.com/clinika/clinika/internal/platform/apperror"
	"github.com/clinika/clinika/pkg/pagination"
)

type Handler struct {
	svc *Manager
}

func NewHandler(svc *Manager) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/clinics/:clinic_id/profiles", h.ListProfiles)
	api.GET("/profiles/:id", h.GetProfile)
}

func (h *Handler) ListProfiles(c echo.Context) error {
	clinicID, err := uuid.Parse(c.Param("clinic_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic id")
	}

	kind := identity.PersonKind(c.QueryParam("kind"))
	if kind != identity.KindDoctor && kind != identity.KindPatient {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be doctor or patient")
	}

	p := pagination.FromContext(c)
	profiles, total, err := h.svc.ListByClinic(c.Request().Context(), kind, clinicID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(profiles, total, p.Limit, p.Offset))
}

func (h *Handler) GetProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid profile id")
	}
	prof, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, prof)
}
