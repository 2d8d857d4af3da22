// Command hallbookctl: обслуживание базы залов и бронирований.
//
//	hallbookctl [-config path] seed   [-halls configs/halls.yaml]
//	hallbookctl [-config path] token  -id 1 -role admin [-ttl 24h]
//	hallbookctl [-config path] export [-out exports] [-status upcoming] [-district X]
//	hallbookctl [-config path] backup
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"hallbook/internal/api"
	"hallbook/internal/booking"
	"hallbook/internal/config"
	"hallbook/internal/database"
	"hallbook/internal/domain"
	"hallbook/internal/export"
	"hallbook/internal/models"
	"hallbook/internal/repository"
	"hallbook/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("hallbookctl", flag.ExitOnError)
	configPath := global.String("config", "configs/config.yaml", "path to config.yaml")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		return errors.New("command required: seed | token | export | backup")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "hallbookctl").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "seed":
		return runSeed(ctx, cfg, rest, &logger)
	case "token":
		return runToken(cfg, rest)
	case "export":
		return runExport(ctx, cfg, rest, &logger)
	case "backup":
		return runBackup(ctx, cfg, &logger)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runSeed перезаписывает каталог залов из yaml, включая флаг одобрения.
// Пишет мимо кэша, поэтому после записи сбрасывает ключи hall:<id> в Redis.
func runSeed(ctx context.Context, cfg *config.Config, args []string, logger *zerolog.Logger) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	hallsPath := fs.String("halls", "configs/halls.yaml", "path to halls.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := os.ReadFile(*hallsPath)
	if err != nil {
		return fmt.Errorf("read halls: %w", err)
	}
	var catalog struct {
		Halls []models.Hall `yaml:"halls"`
	}
	if err = yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse halls: %w", err)
	}
	if len(catalog.Halls) == 0 {
		return errors.New("no halls in yaml")
	}
	if err = config.ValidateHalls(catalog.Halls); err != nil {
		return err
	}

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	created, updated := 0, 0
	ids := make([]int64, 0, len(catalog.Halls))
	for i := range catalog.Halls {
		hall := catalog.Halls[i]
		_, err = db.GetHall(ctx, hall.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, domain.ErrRecordNotFound):
			created++
		default:
			return fmt.Errorf("get hall %d: %w", hall.ID, err)
		}
		if err = db.UpsertHall(ctx, &hall); err != nil {
			return fmt.Errorf("upsert hall %d: %w", hall.ID, err)
		}
		ids = append(ids, hall.ID)
	}

	if cfg.Redis.Address != "" {
		client := repository.NewRedisClient(cfg.Redis)
		defer (func() { _ = repository.Close(client) })()
		if err = repository.InvalidateHalls(ctx, client, ids...); err != nil {
			// кэш истечет сам через cache_ttl
			logger.Warn().Err(err).Int("halls", len(ids)).Msg("hall cache not invalidated")
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}

func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	id := fs.Int64("id", 0, "user id")
	role := fs.String("role", string(models.RoleCustomer), "customer | owner | admin")
	ttl := fs.Duration("ttl", time.Duration(cfg.API.Auth.TokenTTL)*time.Minute, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id must be positive")
	}
	if cfg.API.Auth.JWTSecret == "" {
		return errors.New("api.auth.jwt_secret is not set")
	}

	user := models.User{ID: *id, Role: models.Role(strings.ToLower(*role))}
	token, exp, err := api.IssueToken(cfg.API.Auth.JWTSecret, user, *ttl)
	if err != nil {
		return err
	}
	fmt.Printf("%s\nexpires: %s\n", token, exp.Format(time.RFC3339))
	return nil
}

// runExport сохраняет все бронирования (взгляд администратора) в XLSX.
func runExport(ctx context.Context, cfg *config.Config, args []string, logger *zerolog.Logger) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", cfg.Exports.Path, "output directory")
	status := fs.String("status", "", "upcoming | past")
	district := fs.String("district", "", "district filter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := models.BookingFilter{District: *district}
	if *status != "" {
		st, err := models.ParseStatus(strings.ToLower(*status))
		if err != nil {
			return err
		}
		filter.Status = &st
	}

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}
	bookings, err := service.NewBookingService(service.BookingServiceDeps{
		Store:   db,
		Catalog: db,
		Clock:   booking.SystemClock{Location: loc},
		Intake:  booking.IntakeConfig{MaxBookingDays: cfg.Booking.Horizon()},
	}, logger)
	if err != nil {
		return err
	}

	views, err := bookings.ListBookings(ctx, &models.User{Role: models.RoleAdmin}, filter)
	if err != nil {
		return err
	}
	path, err := export.SaveBookings(*out, views, time.Now().In(loc))
	if err != nil {
		return err
	}
	fmt.Printf("exported %d bookings to %s\n", len(views), path)
	return nil
}

func runBackup(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Database.Driver != database.DriverSQLite {
		return fmt.Errorf("backup supports sqlite only, driver is %q", cfg.Database.Driver)
	}
	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	path, err := database.NewBackupService(db, cfg.Backup, logger).PerformBackup(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("backup written to %s\n", path)
	return nil
}

func openDB(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	if cfg.Database.Driver == database.DriverMemory {
		return nil, errors.New("memory driver has no persistent database")
	}
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}
