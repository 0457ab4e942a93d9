package app

import (
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
	"github.com/yungbote/conceptlab-backend/internal/platform/envutil"
)

type Config struct {
	Port           string
	ServiceName    string
	AuthSecret     string
	CORSOrigins    []string
	TracingEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:           envutil.Str("PORT", "8080"),
		ServiceName:    envutil.Str("SERVICE_NAME", "conceptlab-backend"),
		AuthSecret:     envutil.Str("CONCEPTS_AUTH_SECRET", ""),
		CORSOrigins:    envutil.List("CORS_ORIGINS"),
		TracingEnabled: envutil.Bool("OTEL_ENABLED", false),
	}
	if cfg.AuthSecret == "" {
		log.Warn("CONCEPTS_AUTH_SECRET unset, requests are unauthenticated")
	}
	return cfg
}
