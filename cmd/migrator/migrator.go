package main

import (
	"flag"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "migrations", "migrations directory")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		logger.Fatal("DB_DSN is empty")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}
	switch cmd {
	case "up":
		err = goose.Up(db, *dir)
	case "down":
		err = goose.Down(db, *dir)
	case "status":
		err = goose.Status(db, *dir)
	default:
		logger.Fatal("unknown command", zap.String("cmd", cmd))
	}
	if err != nil {
		logger.Fatal("migrate", zap.String("cmd", cmd), zap.Error(err))
	}
	logger.Info("migrations ok", zap.String("cmd", cmd))
}
