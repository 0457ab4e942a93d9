package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/conceptlab-backend/internal/clients/openai"
	"github.com/yungbote/conceptlab-backend/internal/clients/rediscache"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

type Clients struct {
	OpenAI      openai.Client
	VectorCache rediscache.VectorCache
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	// Openai
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	// Redis
	var cache rediscache.VectorCache
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		c, err := rediscache.NewVectorCache(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis vector cache: %w", err)
		}
		cache = c
	}

	return Clients{
		OpenAI:      openaiClient,
		VectorCache: cache,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.VectorCache != nil {
		_ = c.VectorCache.Close()
	}
}
