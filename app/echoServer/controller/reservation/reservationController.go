package reservation

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/amandev2001/mylib/app/echoServer/jwtx"
	"github.com/amandev2001/mylib/model"
	reservationsvc "github.com/amandev2001/mylib/service/reservation"
	"github.com/amandev2001/mylib/util/apperr"
)

type Controller struct {
	Svc reservationsvc.Service
	Log *slog.Logger
}

func isAdmin(c echo.Context) bool {
	role, _ := jwtx.RoleFromContext(c)
	return role == model.RoleAdmin
}

func (h *Controller) fail(c echo.Context, op string, err error) error {
	switch apperr.CodeOf(err) {
	case apperr.NotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": err.Error()})
	case apperr.Conflict, apperr.InvalidState:
		return c.JSON(http.StatusConflict, echo.Map{"message": err.Error()})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}

// POST /v1/reservations/:bookId
func (h *Controller) Create(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	bookID, err := parseID(c, "bookId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid book id"})
	}
	res, err := h.Svc.Create(c.Request().Context(), uid, bookID)
	if err != nil {
		return h.fail(c, "reservation create", err)
	}
	return c.JSON(http.StatusCreated, res)
}

// PUT /v1/reservations/cancel/:id
func (h *Controller) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.Cancel(c.Request().Context(), id); err != nil {
		return h.fail(c, "reservation cancel", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reservation cancelled"})
}

// PUT /v1/reservations/complete/:id  (admin)
func (h *Controller) Complete(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.Complete(c.Request().Context(), id); err != nil {
		return h.fail(c, "reservation complete", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reservation completed"})
}

// GET /v1/reservations/my
func (h *Controller) My(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	rows, err := h.Svc.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, "reservation my", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/reservations/all  (admin)
func (h *Controller) All(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	rows, err := h.Svc.ListAll(c.Request().Context())
	if err != nil {
		return h.fail(c, "reservation all", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.ErrBadRequest
	}
	return id, nil
}
