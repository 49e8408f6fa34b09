/*
Package config loads server configuration from the environment.

PURPOSE:
  Centralizes all tunables: HTTP port, database path, JWT settings, CORS
  origins, and demo seeding. A .env file is loaded when present so local
  development needs no exported variables; real deployments set the
  environment directly.

VARIABLES:
  PORT             HTTP server port            (default: 8080)
  DB_PATH          SQLite database path        (default: rewards.db)
  JWT_SECRET       Token signing secret        (default: dev only)
  TOKEN_EXPIRY_H   Token lifetime in hours     (default: 24)
  ALLOWED_ORIGINS  Comma-separated CORS list   (default: localhost dev ports)
  SEED_DEMO        Seed demo tasks and admin   (default: false)

SEE ALSO:
  - cmd/server/main.go: Where the config is consumed
*/
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	DBPath         string
	JWTSecret      string
	TokenExpiry    time.Duration
	AllowedOrigins []string
	SeedDemo       bool
}

// Load reads configuration from the environment, consulting a .env file
// if one exists in the working directory.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env file")
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		DBPath:      envString("DB_PATH", "rewards.db"),
		JWTSecret:   envString("JWT_SECRET", "dev-secret-change-in-production"),
		TokenExpiry: time.Duration(envInt("TOKEN_EXPIRY_H", 24)) * time.Hour,
		AllowedOrigins: splitOrigins(envString("ALLOWED_ORIGINS",
			"http://localhost:5173,http://localhost:8080")),
		SeedDemo: envBool("SEED_DEMO", false),
	}

	if cfg.JWTSecret == "dev-secret-change-in-production" {
		log.Println("WARNING: using default JWT secret; set JWT_SECRET in production")
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func splitOrigins(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
