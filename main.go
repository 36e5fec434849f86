// Package main mylib API.
//
// @title           mylib Library API
// @version         1.0
// @description     library lending service (catalog, borrows, reservations, fines).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/amandev2001/mylib/app/echoServer"
	authctrl "github.com/amandev2001/mylib/app/echoServer/controller/auth"
	bookctrl "github.com/amandev2001/mylib/app/echoServer/controller/book"
	borrowctrl "github.com/amandev2001/mylib/app/echoServer/controller/borrow"
	finectrl "github.com/amandev2001/mylib/app/echoServer/controller/fine"
	reservationctrl "github.com/amandev2001/mylib/app/echoServer/controller/reservation"
	"github.com/amandev2001/mylib/app/echoServer/validation"
	"github.com/amandev2001/mylib/config"
	bookrepo "github.com/amandev2001/mylib/repository/book"
	borrowrepo "github.com/amandev2001/mylib/repository/borrow"
	notifyrepo "github.com/amandev2001/mylib/repository/notify"
	reservationrepo "github.com/amandev2001/mylib/repository/reservation"
	userrepo "github.com/amandev2001/mylib/repository/user"
	authsvc "github.com/amandev2001/mylib/service/auth"
	booksvc "github.com/amandev2001/mylib/service/book"
	borrowsvc "github.com/amandev2001/mylib/service/borrow"
	finesvc "github.com/amandev2001/mylib/service/fine"
	reservationsvc "github.com/amandev2001/mylib/service/reservation"
	"github.com/amandev2001/mylib/util/database"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	// DB: *sql.DB over pgx
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ur := userrepo.New(db)
	bkr := bookrepo.New(db)
	brr := borrowrepo.New(db)
	rr := reservationrepo.New(db)

	nf := notifyrepo.NewNoop()
	if cfg.NotifyWebhookURL != "" {
		nf = notifyrepo.NewHTTP(cfg.NotifyWebhookURL)
	}

	// services
	as := authsvc.New(ur, cfg.JWTSecret)
	brs := borrowsvc.New(db, brr, ur, nf, borrowsvc.Config{
		BorrowDaysLimit: cfg.BorrowDaysLimit,
		FinePerDay:      cfg.FinePerDay,
	})
	bks := booksvc.New(db, bkr, brs)
	rs := reservationsvc.New(db, rr, bkr, ur)
	fs := finesvc.New(brr)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	bookC := &bookctrl.Controller{Svc: bks, V: v, Log: log}
	borrowC := &borrowctrl.Controller{Svc: brs, V: v, Log: log}
	reservationC := &reservationctrl.Controller{Svc: rs, Log: log}
	fineC := &finectrl.Controller{Svc: fs, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:        authC,
		Book:        bookC,
		Borrow:      borrowC,
		Reservation: reservationC,
		Fine:        fineC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	log.Info("starting server", "port", port, "env", cfg.Env)

	e.Logger.Fatal(e.Start(":" + port))
}
