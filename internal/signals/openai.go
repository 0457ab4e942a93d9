package signals

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/yungbote/conceptlab-backend/internal/clients/openai"
	"github.com/yungbote/conceptlab-backend/internal/clients/rediscache"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

// OpenAIEmbeddingName is the registry name of the OpenAI embedding signal.
const OpenAIEmbeddingName = "openai"

// OpenAIEmbedding embeds text through the OpenAI client, with an optional
// shared vector cache in front of it. Cache failures degrade to plain
// provider calls rather than failing the embed.
type OpenAIEmbedding struct {
	log    *logger.Logger
	client openai.Client
	cache  rediscache.VectorCache
}

func NewOpenAIEmbedding(log *logger.Logger, client openai.Client, cache rediscache.VectorCache) *OpenAIEmbedding {
	return &OpenAIEmbedding{
		log:    log.With("signal", OpenAIEmbeddingName),
		client: client,
		cache:  cache,
	}
}

func (s *OpenAIEmbedding) Name() string { return OpenAIEmbeddingName }

func (s *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.cache == nil || len(texts) == 0 {
		return s.client.Embed(ctx, texts)
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = s.cacheKey(t)
	}

	hits, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		s.log.Warn("vector cache read failed", "error", err)
		hits = make([][]float32, len(texts))
	}

	var missingIdx []int
	var missingTexts []string
	for i, v := range hits {
		if len(v) == 0 {
			missingIdx = append(missingIdx, i)
			missingTexts = append(missingTexts, texts[i])
		}
	}
	if len(missingIdx) == 0 {
		return hits, nil
	}

	vecs, err := s.client.Embed(ctx, missingTexts)
	if err != nil {
		return nil, err
	}

	setKeys := make([]string, len(missingIdx))
	for i, idx := range missingIdx {
		hits[idx] = vecs[i]
		setKeys[i] = keys[idx]
	}
	if err := s.cache.SetMany(ctx, setKeys, vecs); err != nil {
		s.log.Warn("vector cache write failed", "error", err)
	}
	return hits, nil
}

func (s *OpenAIEmbedding) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embed:%s:%s:%x", OpenAIEmbeddingName, s.client.EmbedModel(), sum)
}
