package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shopfront-backend/internal/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/env"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/migrate"
)

type options struct {
	cmd      string
	dir      string
	name     string
	version  string
	email    string
	password string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.cmd, "cmd", "up", "up|down|status|version|create|validate|createsuperuser")
	flag.StringVar(&o.dir, "dir", "", "migrations directory; empty uses the set compiled into the binary")
	flag.StringVar(&o.name, "name", "", "migration name (create)")
	flag.StringVar(&o.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.StringVar(&o.email, "email", "", "operator email (createsuperuser)")
	flag.StringVar(&o.password, "password", "", "operator password (createsuperuser); falls back to SHOPFRONT_SUPERUSER_PASSWORD(_FILE)")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	// create and validate work on files only.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			fail("missing -name for create")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	must(logg, "config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	must(logg, "database", err)
	defer dbClient.Close()

	if opts.cmd == "createsuperuser" {
		createSuperuser(ctx, dbClient, cfg, opts)
		return
	}

	sqlDB, err := dbClient.SQL()
	must(logg, "sql handle", err)
	runner, err := migrate.NewRunner(sqlDB, dbClient.Driver(), migrate.Files(opts.dir), os.Stdout)
	must(logg, "goose provider", err)

	switch opts.cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		err = runner.Status(ctx)
	case "version":
		if opts.version == "" {
			fail("missing -version for version command")
		}
		err = runner.MigrateTo(ctx, opts.version)
	default:
		fail("unknown -cmd value: %s", opts.cmd)
	}
	if err != nil {
		fail("%v", err)
	}
	logg.Info(ctx, "migrate.done")
}

func createSuperuser(ctx context.Context, client *db.Client, cfg *config.Config, opts options) {
	pw := opts.password
	if pw == "" {
		var err error
		if pw, err = env.Secret("SHOPFRONT_SUPERUSER_PASSWORD"); err != nil {
			fail("read superuser password: %v", err)
		}
	}
	if opts.email == "" || pw == "" {
		fail("createsuperuser needs -email and -password")
	}
	user, err := auth.CreateSuperuser(ctx, client, cfg.Password, auth.SuperuserRequest{
		Email:    opts.email,
		Password: pw,
	})
	if err != nil {
		fail("createsuperuser failed: %v", err)
	}
	fmt.Println("created superuser:", user.Email)
}

func must(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "migrate: "+resource+" unavailable", err)
	os.Exit(1)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
