package drug

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock/internal/platform/auth"
	"github.com/pharmstock/pharmstock/pkg/pagination"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "pharmacist", "staff"))
	read.GET("/drugs", h.SearchDrugs)
	read.GET("/drugs/check-code", h.CheckCode)
	read.GET("/drugs/:id", h.GetDrug)

	write := api.Group("", auth.RequireRole("admin", "pharmacist"))
	write.POST("/drugs", h.CreateDrug)
	write.POST("/drugs/check-code", h.BulkCheckCodes)
	write.PUT("/drugs/:id", h.UpdateDrug)
	write.DELETE("/drugs/:id", h.DeleteDrug)
}

// writeErr maps domain errors onto HTTP status codes.
func writeErr(c echo.Context, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": conflict.Error(),
			"code":  conflict.Code,
			"price": conflict.Price.StringFixed(2),
		})
	}
	var serr *StorageError
	if errors.As(err, &serr) && serr.ActorReference {
		return echo.NewHTTPError(http.StatusInternalServerError, "referenced user does not exist")
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "drug not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// CheckCode resolves a single code. GET /drugs/check-code?code=TAB001
// With price (and optionally exclude_id, for edits) it also reports
// whether that exact (code, price) slot is taken.
func (h *Handler) CheckCode(c echo.Context) error {
	ctx := c.Request().Context()
	res, err := h.svc.Resolve(ctx, c.QueryParam("code"))
	if err != nil {
		return writeErr(c, err)
	}

	if raw := c.QueryParam("price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid price")
		}
		var excludeID *uuid.UUID
		if v := c.QueryParam("exclude_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid exclude_id")
			}
			excludeID = &id
		}
		conflict := false
		switch err := h.svc.CheckCode(ctx, res.Code, price, excludeID); {
		case errors.As(err, new(*ConflictError)):
			conflict = true
		case err != nil:
			return writeErr(c, err)
		}
		res.ExactConflict = &conflict
	}
	return c.JSON(http.StatusOK, res)
}

// BulkCheckCodes resolves a batch of codes in one round trip.
// POST /drugs/check-code
func (h *Handler) BulkCheckCodes(c echo.Context) error {
	var req BulkCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ResolveBulk(c.Request().Context(), &req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CreateDrug(c echo.Context) error {
	actorID, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}

	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return writeErr(c, validatorToFieldErrors(err))
	}

	result, err := h.svc.Create(c.Request().Context(), actorID, &req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetDrug(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) SearchDrugs(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(),
		c.QueryParam("q"), c.QueryParam("category"), pg.Limit, pg.Offset)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDrug(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return writeErr(c, validatorToFieldErrors(err))
	}
	v, err := h.svc.Update(c.Request().Context(), id, &req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteDrug(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// validatorToFieldErrors converts validator tag failures into the
// domain's per-field shape so clients see one error format.
func validatorToFieldErrors(err error) error {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return &ValidationError{Fields: []FieldError{{Field: "request", Message: err.Error()}}}
	}
	verr := &ValidationError{}
	for _, fe := range invalid {
		verr.Add(fe.Field(), "failed "+fe.Tag()+" validation")
	}
	return verr
}
