package config

import (
	"os"
	"path/filepath"
	"testing"

	"hallbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("HALLBOOK_JWT_SECRET", "s3cret")
	path := writeConfig(t, `
database:
  path: "data/hallbook.db"
api:
  enabled: true
  auth:
    enabled: true
    jwt_secret: "${HALLBOOK_JWT_SECRET}"
booking:
  timezone: "Asia/Tashkent"
  max_booking_days: 365
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.API.Auth.JWTSecret)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.API.HTTP.Enabled)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 365, cfg.Booking.Horizon())
	assert.Equal(t, models.DefaultMinNameLength, cfg.Booking.MinNameLength)
	assert.Equal(t, models.DefaultPhonePattern, cfg.Booking.PhonePattern)
	assert.Equal(t, "hallbook.events", cfg.Broker.Exchange)

	loc, err := cfg.Booking.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tashkent", loc.String())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "sqlite",
			cfg:  Config{Database: DatabaseConfig{Driver: "sqlite", Path: "db"}},
		},
		{
			name:    "sqlite without path",
			cfg:     Config{Database: DatabaseConfig{Driver: "sqlite"}},
			wantErr: true,
		},
		{
			name:    "postgres without host",
			cfg:     Config{Database: DatabaseConfig{Driver: "postgres"}},
			wantErr: true,
		},
		{
			name: "memory",
			cfg:  Config{Database: DatabaseConfig{Driver: "memory"}},
		},
		{
			name:    "unknown driver",
			cfg:     Config{Database: DatabaseConfig{Driver: "mongo"}},
			wantErr: true,
		},
		{
			name: "bad timezone",
			cfg: Config{
				Database: DatabaseConfig{Driver: "memory"},
				Booking:  BookingConfig{Timezone: "Mars/Olympus"},
			},
			wantErr: true,
		},
		{
			name: "auth without secret",
			cfg: Config{
				Database: DatabaseConfig{Driver: "memory"},
				API:      APIConfig{Enabled: true, Auth: APIAuthConfig{Enabled: true}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHalls(t *testing.T) {
	assert.NoError(t, ValidateHalls([]models.Hall{{ID: 1, Capacity: 10}, {ID: 2, Capacity: 20}}))
	assert.Error(t, ValidateHalls([]models.Hall{{ID: 0, Capacity: 10}}))
	assert.Error(t, ValidateHalls([]models.Hall{{ID: 1, Capacity: 10}, {ID: 1, Capacity: 10}}))
	assert.Error(t, ValidateHalls([]models.Hall{{ID: 1, Capacity: 0}}))
	assert.Error(t, ValidateHalls([]models.Hall{{ID: 1, Capacity: 5, PricePerGuest: -1}}))
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresConfig{Host: "db", Port: 5432, DBName: "hallbook", SSLMode: "disable", User: "app"}.DSN()
	assert.Equal(t, "host=db port=5432 dbname=hallbook sslmode=disable user=app", dsn)
}

func TestHorizon(t *testing.T) {
	assert.Equal(t, 0, BookingConfig{MaxBookingDays: -1}.Horizon(), "negative disables")

	cfg := &Config{}
	cfg.applyDefaults()
	assert.Equal(t, models.DefaultMaxBookingDays, cfg.Booking.Horizon(), "zero means default")

	cfg = &Config{Booking: BookingConfig{MaxBookingDays: -1}}
	cfg.applyDefaults()
	assert.Equal(t, 0, cfg.Booking.Horizon())
}
