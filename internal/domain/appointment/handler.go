package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/happyhealth/clinic/internal/platform/auth"
	"github.com/happyhealth/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments")
	g.POST("", h.Create, auth.RequireRole(auth.RolePatient, auth.RoleAdmin))
	g.GET("", h.List, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	g.GET("/:id", h.Get, auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	g.GET("/patient/:id", h.ListByPatient, auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	g.GET("/doctor/:id", h.ListByDoctor, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	g.GET("/status/:status", h.ListByStatus, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	g.GET("/date-range", h.ListByDateRange, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	g.PUT("/:id", h.Update, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	g.POST("/:id/cancel", h.Cancel, auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin))
	g.DELETE("/:id", h.Delete, auth.RequireRole(auth.RoleAdmin))
}

// mapError translates the service's sentinel errors into transport errors.
// A booking conflict is a 409, never a 500.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrSlotTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// Patients book for themselves only.
	principal := auth.PrincipalFromContext(c.Request().Context())
	if principal.Role == auth.RolePatient && in.PatientID != principal.AccountID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only book their own appointments")
	}
	appt, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	// Patients see only their own appointments.
	principal := auth.PrincipalFromContext(c.Request().Context())
	if principal.Role == auth.RolePatient && appt.PatientID != principal.AccountID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only access their own appointments")
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	appts, total, err := h.svc.List(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	principal := auth.PrincipalFromContext(c.Request().Context())
	if principal.Role == auth.RolePatient && id != principal.AccountID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only access their own appointments")
	}
	p := pagination.FromContext(c)
	appts, total, err := h.svc.ListByPatient(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p := pagination.FromContext(c)
	appts, total, err := h.svc.ListByDoctor(c.Request().Context(), id, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (h *Handler) ListByStatus(c echo.Context) error {
	p := pagination.FromContext(c)
	appts, total, err := h.svc.ListByStatus(c.Request().Context(), c.Param("status"), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (h *Handler) ListByDateRange(c echo.Context) error {
	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from must be an RFC 3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to must be an RFC 3339 timestamp")
	}
	p := pagination.FromContext(c)
	appts, total, err := h.svc.ListByDateRange(c.Request().Context(), from, to, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	principal := auth.PrincipalFromContext(c.Request().Context())
	if principal.Role == auth.RolePatient {
		appt, err := h.svc.Get(c.Request().Context(), id)
		if err != nil {
			return mapError(err)
		}
		if appt.PatientID != principal.AccountID {
			return echo.NewHTTPError(http.StatusForbidden, "patients may only cancel their own appointments")
		}
	}
	appt, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
