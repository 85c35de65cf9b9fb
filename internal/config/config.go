package config

import (
	"os"
	"strconv"
	"strings"

	"minefield_webapp/internal/game"
	"minefield_webapp/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Odds policy
	HouseEdge   float64
	PayoutFloor float64
	PayoutCap   float64

	// Game limits
	GridSizes []int
	MinBet    int64
	MaxBet    int64

	// Rate limits: requests per window, window in seconds
	APIRateLimit   int
	APIRateWindow  int
	AuthRateLimit  int
	AuthRateWindow int
	GameRateLimit  int
	GameRateWindow int

	LogLevel string
	LogJSON  bool
}

// Odds returns the payout policy in the form the game engine consumes.
func (c *Config) Odds() game.OddsParams {
	return game.OddsParams{
		HouseEdge:   c.HouseEdge,
		PayoutFloor: c.PayoutFloor,
		PayoutCap:   c.PayoutCap,
	}
}

// Load reads configuration from the environment. DATABASE_URL and
// JWT_SECRET are required, everything else has a default.
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	houseEdge := envFloat("HOUSE_EDGE", 0.08)
	if houseEdge < 0 || houseEdge >= 1 {
		logger.Fatal("HOUSE_EDGE must be in [0, 1)", "value", houseEdge)
	}

	payoutFloor := envFloat("PAYOUT_FLOOR", 1.05)
	payoutCap := envFloat("PAYOUT_CAP", 500)
	if payoutFloor < 1 || payoutCap < payoutFloor {
		logger.Fatal("invalid payout clamps", "floor", payoutFloor, "cap", payoutCap)
	}

	// GRID_SIZES is a comma-separated list, e.g. "16,25,36"
	gridSizes := []int{16, 25, 36}
	if v := os.Getenv("GRID_SIZES"); v != "" {
		var sizes []int
		for _, s := range strings.Split(v, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
				sizes = append(sizes, n)
			}
		}
		if len(sizes) > 0 {
			gridSizes = sizes
		}
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: dbURL,
		JWTSecret:   jwtSecret,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		HouseEdge:   houseEdge,
		PayoutFloor: payoutFloor,
		PayoutCap:   payoutCap,

		GridSizes: gridSizes,
		MinBet:    envInt64("MIN_BET", 10),
		MaxBet:    envInt64("MAX_BET", 100000),

		APIRateLimit:   envInt("API_RATE_LIMIT", 120),
		APIRateWindow:  envInt("API_RATE_WINDOW", 60),
		AuthRateLimit:  envInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow: envInt("AUTH_RATE_WINDOW", 60),
		GameRateLimit:  envInt("GAME_RATE_LIMIT", 60),
		GameRateWindow: envInt("GAME_RATE_WINDOW", 60),

		LogLevel: logLevel,
		LogJSON:  os.Getenv("LOG_JSON") == "true",
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
