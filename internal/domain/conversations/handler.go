package conversations

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rebook/rebook/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/counts", h.GetCounts)
	api.GET("/conversations/by-phone/:phone", h.GetThread)
}

func (h *Handler) ListConversations(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.svc.ListConversations(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, len(items), pg.Limit, pg.Offset))
}

func (h *Handler) GetCounts(c echo.Context) error {
	counts, err := h.svc.Counts(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, counts)
}

func (h *Handler) GetThread(c echo.Context) error {
	thread, err := h.svc.GetThread(c.Request().Context(), c.Param("phone"))
	if err != nil {
		if errors.Is(err, ErrPhoneRequired) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, thread)
}
