package borrow

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/amandev2001/mylib/app/echoServer/jwtx"
	"github.com/amandev2001/mylib/model"
	borrowsvc "github.com/amandev2001/mylib/service/borrow"
	"github.com/amandev2001/mylib/util/apperr"
)

type Controller struct {
	Svc borrowsvc.Service
	V   *validator.Validate
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
	case apperr.OutOfStock, apperr.Conflict, apperr.InvalidState:
		return c.JSON(http.StatusConflict, echo.Map{"message": err.Error()})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}

// POST /v1/borrow/request/:bookId
func (h *Controller) Request(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	bookID, err := parseID(c, "bookId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid book id"})
	}
	rec, err := h.Svc.RequestBorrow(c.Request().Context(), uid, bookID)
	if err != nil {
		return h.fail(c, "borrow request", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Borrow request submitted. Waiting for admin approval.",
		"record":  rec,
	})
}

// PUT /v1/borrow/admin/approve/:id  (admin)
func (h *Controller) Approve(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	rec, err := h.Svc.ApproveBorrowRequest(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "borrow approve", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "borrow request approved", "record": rec})
}

// PUT /v1/borrow/return/request/:id
func (h *Controller) RequestReturn(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.ownedOrAdmin(c, id); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	if err := h.Svc.RequestReturn(c.Request().Context(), id); err != nil {
		return h.fail(c, "return request", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Return request submitted. Waiting for admin approval."})
}

// PUT /v1/borrow/admin/return/approve/:id  (admin)
func (h *Controller) ApproveReturn(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.ApproveReturnRequest(c.Request().Context(), id); err != nil {
		return h.fail(c, "return approve", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "book return approved"})
}

// PUT /v1/borrow/cancel/request/:id
func (h *Controller) CancelRequest(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.ownedOrAdmin(c, id); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	if err := h.Svc.CancelBorrowRequest(c.Request().Context(), id); err != nil {
		return h.fail(c, "borrow cancel", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "borrow request cancelled"})
}

// PUT /v1/borrow/cancel/return/:id
func (h *Controller) CancelReturn(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.ownedOrAdmin(c, id); err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	if err := h.Svc.CancelReturnRequest(c.Request().Context(), id); err != nil {
		return h.fail(c, "return cancel", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "return request cancelled"})
}

// PUT /v1/borrow/admin/update/:id  (admin)
func (h *Controller) Update(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var patch model.BorrowPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	rec, err := h.Svc.UpdateBorrowRecord(c.Request().Context(), id, patch)
	if err != nil {
		return h.fail(c, "borrow update", err)
	}
	return c.JSON(http.StatusOK, rec)
}

// GET /v1/borrow/my
func (h *Controller) MyHistory(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	rows, err := h.Svc.History(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, "borrow history", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrow/my/active
func (h *Controller) MyActive(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	rows, err := h.Svc.ActiveByUser(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, "borrow active", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrow/admin/all  (admin)
func (h *Controller) All(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	rows, err := h.Svc.ListAll(c.Request().Context())
	if err != nil {
		return h.fail(c, "borrow all", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrow/admin/book/:bookId  (admin)
func (h *Controller) BookHistory(c echo.Context) error {
	if !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
	}
	bookID, err := parseID(c, "bookId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid book id"})
	}
	rows, err := h.Svc.BookHistory(c.Request().Context(), bookID)
	if err != nil {
		return h.fail(c, "borrow book history", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrow/:id
func (h *Controller) Detail(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	rec, err := h.Svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "borrow detail", err)
	}
	if !isAdmin(c) {
		uid, uerr := jwtx.UserIDFromContext(c)
		if uerr != nil || rec.UserID != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		}
	}
	return c.JSON(http.StatusOK, rec)
}

// ownedOrAdmin rejects user actions on someone else's record.
func (h *Controller) ownedOrAdmin(c echo.Context, recordID int64) error {
	if isAdmin(c) {
		return nil
	}
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return err
	}
	rec, err := h.Svc.GetByID(c.Request().Context(), recordID)
	if err != nil {
		// Let the service surface NotFound with a proper status later.
		return nil
	}
	if rec.UserID != uid {
		return echo.ErrForbidden
	}
	return nil
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.ErrBadRequest
	}
	return id, nil
}
