package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-app/lectern/internal/model"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{1, 2, 3}, nil
}

func (p *countingProvider) EmbedModelName() string {
	return "test-embed"
}

type mapCacheStore struct {
	items   map[string]*model.EmbeddingCache
	getErr  error
	saveErr error
}

func (s *mapCacheStore) key(modelName, taskType, hash string) string {
	return modelName + "|" + taskType + "|" + hash
}

func (s *mapCacheStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	item, ok := s.items[s.key(modelName, taskType, contentHash)]
	if !ok {
		return nil, false, nil
	}
	return item.Embedding, true, nil
}

func (s *mapCacheStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.items == nil {
		s.items = make(map[string]*model.EmbeddingCache)
	}
	s.items[s.key(item.ModelName, item.TaskType, item.ContentHash)] = item
	return nil
}

func TestCachingEmbedderHitsCacheOnRepeat(t *testing.T) {
	provider := &countingProvider{}
	embedder := NewCachingEmbedder(provider, &mapCacheStore{})

	first, err := embedder.Embed(context.Background(), "same text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	second, err := embedder.Embed(context.Background(), "same text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls)
}

func TestCachingEmbedderTaskTypeSeparatesEntries(t *testing.T) {
	provider := &countingProvider{}
	embedder := NewCachingEmbedder(provider, &mapCacheStore{})

	_, err := embedder.Embed(context.Background(), "same text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	_, err = embedder.Embed(context.Background(), "same text", "RETRIEVAL_QUERY")
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls)
}

func TestCachingEmbedderDurableStoreSurvivesLRULoss(t *testing.T) {
	store := &mapCacheStore{}
	first := NewCachingEmbedder(&countingProvider{}, store)
	_, err := first.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)

	// A fresh embedder has an empty LRU but shares the durable store.
	provider := &countingProvider{}
	second := NewCachingEmbedder(provider, store)
	_, err = second.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	assert.Zero(t, provider.calls)
}

func TestCachingEmbedderCacheFailureDegrades(t *testing.T) {
	provider := &countingProvider{}
	embedder := NewCachingEmbedder(provider, &mapCacheStore{getErr: errors.New("db down"), saveErr: errors.New("db down")})

	got, err := embedder.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Equal(t, 1, provider.calls)
}

func TestCachingEmbedderProviderErrorPropagates(t *testing.T) {
	embedder := NewCachingEmbedder(&countingProvider{err: errors.New("quota")}, &mapCacheStore{})
	_, err := embedder.Embed(context.Background(), "text", "RETRIEVAL_DOCUMENT")
	assert.Error(t, err)
}
