package fine

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/amandev2001/mylib/app/echoServer/jwtx"
	"github.com/amandev2001/mylib/model"
	finesvc "github.com/amandev2001/mylib/service/fine"
	"github.com/amandev2001/mylib/util/apperr"
)

type Controller struct {
	Svc finesvc.Service
	Log *slog.Logger
}

func isAdmin(c echo.Context) bool {
	role, _ := jwtx.RoleFromContext(c)
	return role == model.RoleAdmin
}

// GET /v1/fines/my/total
func (h *Controller) MyTotal(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	total, err := h.Svc.TotalForUser(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("fine total", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "total": total})
}

// GET /v1/fines/all  (admin)
func (h *Controller) All(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	rows, err := h.Svc.ListAll(c.Request().Context())
	if err != nil {
		h.Log.Error("fine all", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// POST /v1/fines/pay/:id — online payment has no flow yet.
func (h *Controller) Pay(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.PayFine(c.Request().Context(), id); err != nil {
		if apperr.CodeOf(err) == apperr.Conflict {
			return c.JSON(http.StatusNotImplemented, echo.Map{"message": err.Error()})
		}
		h.Log.Error("fine pay", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "fine paid"})
}
