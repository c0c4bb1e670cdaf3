package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"sketch-relay/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	down := flag.Bool("down", false, "roll back instead of applying")
	steps := flag.Int("steps", 0, "number of migrations to apply (0 = all)")
	source := flag.String("source", "file://db/migrations", "migration source")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New(*source, dsn)
	if err != nil {
		log.Fatalf("migration setup failed: %v", err)
	}

	switch {
	case *steps != 0:
		n := *steps
		if *down {
			n = -n
		}
		err = m.Steps(n)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("database migration failed: %v", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		log.Fatalf("version lookup failed: %v", verr)
	}
	log.Printf("database migrations applied version=%d dirty=%t", version, dirty)
}
