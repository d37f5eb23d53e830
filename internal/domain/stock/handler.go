package stock

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	read.GET("/stocks", h.ListStocks)
	read.GET("/stocks/:id", h.GetStock)
	read.GET("/stocks/:id/transactions", h.ListTransactions)

	write := api.Group("", auth.RequireRole("admin", "pharmacist"))
	write.POST("/stocks/adjust", h.AdjustStock)
}

func (h *Handler) ListStocks(c echo.Context) error {
	department := c.QueryParam("department")
	if department == "" {
		department = "PHARMACY"
	}
	lowOnly := c.QueryParam("low") == "true"
	pg := pagination.FromContext(c)

	items, total, err := h.svc.ListRecords(c.Request().Context(), department, lowOnly, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list stocks")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "stock record not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get stock")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListTransactions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTransactions(c.Request().Context(), id, pg.Limit, pg.Offset)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "stock record not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list transactions")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AdjustStock(c echo.Context) error {
	actorID, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing actor")
	}

	var req AdjustRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := h.svc.Adjust(c.Request().Context(), actorID, &req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to adjust stock")
	}
	return c.JSON(http.StatusOK, rec)
}
