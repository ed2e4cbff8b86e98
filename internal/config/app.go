package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	MeetingsMock     = "mock"
	MeetingsZoom     = "zoom"
	MeetingsDisabled = "disabled"
)

type AppConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	RequestTimeout time.Duration
	LogLevel       string

	JWTSecret string
	JWTIssuer string

	// Пустой RedisURL — кэш календаря отключён.
	RedisURL string
	CacheTTL time.Duration

	// Часовой пояс, в котором хранятся дата и время записей.
	Timezone string

	MeetingProvider   string
	ZoomAccountID     string
	ZoomClientID      string
	ZoomClientSecret  string
	BookingRateLimit  int
	BookingRateWindow time.Duration
}

// LoadEnvFile подхватывает .env, если он есть. Уже заданные переменные не перетираются.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:          getEnv("GRPC_ADDR", ":50051"),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTIssuer:         getEnv("JWT_ISSUER", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		CacheTTL:          getEnvDuration("CALENDAR_CACHE_TTL", 5*time.Minute),
		Timezone:          getEnv("APP_TIMEZONE", "Europe/Moscow"),
		MeetingProvider:   strings.ToLower(getEnv("MEETING_PROVIDER", MeetingsMock)),
		ZoomAccountID:     getEnv("ZOOM_ACCOUNT_ID", ""),
		ZoomClientID:      getEnv("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret:  getEnv("ZOOM_CLIENT_SECRET", ""),
		BookingRateLimit:  getEnvInt("BOOKING_RATE_LIMIT", 20),
		BookingRateWindow: getEnvDuration("BOOKING_RATE_WINDOW", time.Minute),
	}

	var errs []error
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("APP_TIMEZONE: %w", err))
	}
	switch cfg.MeetingProvider {
	case MeetingsMock, MeetingsDisabled:
	case MeetingsZoom:
		if cfg.ZoomAccountID == "" || cfg.ZoomClientID == "" || cfg.ZoomClientSecret == "" {
			errs = append(errs, errors.New("ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID and ZOOM_CLIENT_SECRET are required for zoom"))
		}
	default:
		errs = append(errs, fmt.Errorf("MEETING_PROVIDER: unknown provider %q", cfg.MeetingProvider))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid app config: %w", err)
	}

	return cfg, nil
}

// Location — часовой пояс записей. Значение проверено в LoadAppConfig.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
