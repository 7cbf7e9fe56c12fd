package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/model"
)

type embedProvider interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	EmbedModelName() string
}

type embedCacheStore interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

// CachingEmbedder fronts the embedding provider with an in-process LRU and a
// durable cache table. Cache failures degrade to provider calls, never to
// errors.
type CachingEmbedder struct {
	provider embedProvider
	store    embedCacheStore
	lru      *expirable.LRU[string, []float32]
}

func NewCachingEmbedder(provider embedProvider, store embedCacheStore) *CachingEmbedder {
	return &CachingEmbedder{
		provider: provider,
		store:    store,
		lru:      expirable.NewLRU[string, []float32](10000, nil, 2*time.Hour),
	}
}

func (e *CachingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	hash := contentHash(text)
	lruKey := taskType + ":" + hash
	if cached, ok := e.lru.Get(lruKey); ok {
		return cached, nil
	}
	modelName := e.provider.EmbedModelName()
	if e.store != nil {
		cached, ok, err := e.store.Get(ctx, modelName, taskType, hash)
		if err != nil {
			logutil.GetLogger(ctx).Warn("embedding cache read failed", zap.Error(err))
		} else if ok {
			e.lru.Add(lruKey, cached)
			return cached, nil
		}
	}
	embedding, err := e.provider.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	e.lru.Add(lruKey, embedding)
	if e.store != nil {
		if err := e.store.Save(ctx, &model.EmbeddingCache{
			ModelName:   modelName,
			TaskType:    taskType,
			ContentHash: hash,
			Embedding:   embedding,
			Ctime:       nowMilli(),
		}); err != nil {
			logutil.GetLogger(ctx).Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return embedding, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
