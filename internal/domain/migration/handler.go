package migration

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinika/clinika/internal/platform/apperror"
)

type Handler struct {
	migrator *Migrator
	auditor  *Auditor
	ledger   LedgerRepository
}

func NewHandler(migrator *Migrator, auditor *Auditor, ledger LedgerRepository) *Handler {
	return &Handler{migrator: migrator, auditor: auditor, ledger: ledger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/migration/backfill", h.RunBackfill)
	api.GET("/migration/runs/:run_id", h.GetRun)
	api.GET("/migration/audit", h.RunAudit)
}

// RunBackfill executes a full backfill run synchronously and returns the
// per-stage summary. Per-record failures are reflected in the counts, not
// in the status code.
func (h *Handler) RunBackfill(c echo.Context) error {
	summary, err := h.migrator.Run(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

// GetRun returns the per-record ledger of one backfill run, the operator's
// view of what a run touched and why records were skipped or errored.
func (h *Handler) GetRun(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}

	entries, err := h.ledger.ListByRun(c.Request().Context(), runID)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	if len(entries) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no ledger entries for run")
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) RunAudit(c echo.Context) error {
	var clinicID *uuid.UUID
	if raw := c.QueryParam("clinic_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic_id")
		}
		clinicID = &id
	}

	report, err := h.auditor.Audit(c.Request().Context(), clinicID)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
