package echoServer

import (
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/amandev2001/mylib/app/echoServer/controller/auth"
	"github.com/amandev2001/mylib/app/echoServer/controller/book"
	"github.com/amandev2001/mylib/app/echoServer/controller/borrow"
	"github.com/amandev2001/mylib/app/echoServer/controller/fine"
	"github.com/amandev2001/mylib/app/echoServer/controller/reservation"
)

type C struct {
	Auth        *auth.Controller
	Book        *book.Controller
	Borrow      *borrow.Controller
	Reservation *reservation.Controller
	Fine        *fine.Controller

	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/auth/register", c.Auth.Register)
	pub.POST("/auth/login", c.Auth.Login)

	// Authenticated
	authed := e.Group("/v1")
	authed.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		NewClaimsFunc: func(echo.Context) jwt.Claims { return jwt.MapClaims{} },
	}))

	// Books
	authed.GET("/books", c.Book.List)
	authed.GET("/books/search", c.Book.Search)
	authed.GET("/books/:id", c.Book.Detail)
	// Admin catalog endpoints
	authed.POST("/books", c.Book.Create)
	authed.PUT("/books/:id", c.Book.Update)
	authed.POST("/books/:id/restock", c.Book.Restock)

	// Borrowing
	authed.POST("/borrow/request/:bookId", c.Borrow.Request)
	authed.PUT("/borrow/return/request/:id", c.Borrow.RequestReturn)
	authed.PUT("/borrow/cancel/request/:id", c.Borrow.CancelRequest)
	authed.PUT("/borrow/cancel/return/:id", c.Borrow.CancelReturn)
	authed.GET("/borrow/my", c.Borrow.MyHistory)
	authed.GET("/borrow/my/active", c.Borrow.MyActive)
	authed.GET("/borrow/:id", c.Borrow.Detail)
	// Admin approval endpoints
	authed.PUT("/borrow/admin/approve/:id", c.Borrow.Approve)
	authed.PUT("/borrow/admin/return/approve/:id", c.Borrow.ApproveReturn)
	authed.PUT("/borrow/admin/update/:id", c.Borrow.Update)
	authed.GET("/borrow/admin/all", c.Borrow.All)
	authed.GET("/borrow/admin/book/:bookId", c.Borrow.BookHistory)

	// Reservations
	authed.POST("/reservations/:bookId", c.Reservation.Create)
	authed.PUT("/reservations/cancel/:id", c.Reservation.Cancel)
	authed.PUT("/reservations/complete/:id", c.Reservation.Complete)
	authed.GET("/reservations/my", c.Reservation.My)
	authed.GET("/reservations/all", c.Reservation.All)

	// Fines
	authed.GET("/fines/my/total", c.Fine.MyTotal)
	authed.GET("/fines/all", c.Fine.All)
	authed.POST("/fines/pay/:id", c.Fine.Pay)
}
