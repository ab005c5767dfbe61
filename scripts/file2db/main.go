package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/storage"
	"github.com/Decentr-net/plutus/internal/storage/file"
	"github.com/Decentr-net/plutus/internal/storage/postgres"
)

var opts = struct {
	StorageDir         string `long:"storage.dir" env:"STORAGE_DIR" default:"data" description:"directory of file stores"`
	Postgres           string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMigrations string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`
	LeaderboardSize    int    `long:"leaderboard_size" env:"LEADERBOARD_SIZE" default:"100" description:"maximal count of leaderboard entries"`
}{}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "file2db"
	parser.LongDescription = "File stores to database importer"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	logrus.Info("file2db started")
	logrus.Infof("%+v", opts)

	if _, err := os.Stat(opts.StorageDir); err != nil {
		logrus.WithError(err).Fatal("failed to open storage dir")
	}

	snapshot := file.ReadSnapshot(opts.StorageDir)

	logrus.WithFields(logrus.Fields{
		"leaderboard": len(snapshot.Leaderboard),
		"cooldown":    len(snapshot.Cooldown),
		"energy":      len(snapshot.Energy),
	}).Info("snapshot read")

	s := postgres.New(mustGetDB(), postgres.Config{
		LeaderboardSize: opts.LeaderboardSize,
		Energy:          storage.DefaultEnergyPolicy(),
	})

	if err := s.Import(context.Background(), snapshot); err != nil {
		logrus.WithError(err).Fatal("failed to import snapshot")
	}

	logrus.Info("done")
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create database migrate driver")
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", opts.PostgresMigrations), "postgres", driver)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}

	switch v, d, err := migrator.Version(); err {
	case nil:
		logrus.Infof("database version %d with dirty state %t", v, d)
	case migrate.ErrNilVersion:
		logrus.Info("database version: nil")
	default:
		logrus.WithError(err).Fatal("failed to get version")
	}

	switch err := migrator.Up(); err {
	case nil:
		logrus.Info("database was migrated")
	case migrate.ErrNoChange:
		logrus.Info("database is up-to-date")
	default:
		logrus.WithError(err).Fatal("failed to migrate db")
	}

	return db
}
