// Command migrate applies schema migrations from ./migrations.
//
//	go run ./cmd/migrate up
//	go run ./cmd/migrate down 1
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/amandev2001/mylib/config"
)

func main() {
	var path string
	flag.StringVar(&path, "path", "migrations", "path to migrations directory")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := config.Load()

	m, err := migrate.New("file://"+path, cfg.DatabaseURL)
	if err != nil {
		log.Error("migrate init failed", "err", err)
		os.Exit(1)
	}
	defer m.Close()

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if len(args) > 1 {
			if steps, err = strconv.Atoi(args[1]); err != nil {
				log.Error("invalid step count", "arg", args[1])
				os.Exit(1)
			}
		}
		err = m.Steps(-steps)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Error("version failed", "err", verr)
			os.Exit(1)
		}
		fmt.Printf("version=%d dirty=%v\n", v, dirty)
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("migration failed", "cmd", args[0], "err", err)
		os.Exit(1)
	}
	log.Info("migration done", "cmd", args[0])
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [-path dir] up | down [n] | version")
}
