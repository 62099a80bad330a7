package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/studyrag/internal/model"
)

func TestClampTopK(t *testing.T) {
	tests := []struct {
		input int
		want  int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{3, 3},
		{10, 10},
		{11, 10},
		{100, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampTopK(tt.input))
	}
}

func TestSearcherEmptyContextSkipsDownstream(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	index := &fakeIndex{}
	s := NewSearcher(embedder, index)

	hits, err := s.Search(context.Background(), &model.ParsedIntent{
		Total:   3,
		Type:    model.RecordTypeQuestion,
		Context: "   ",
	})
	require.NoError(t, err)
	assert.Nil(t, hits)
	assert.Zero(t, embedder.calls)
	assert.Zero(t, index.queryCalls)
}

func TestSearcherPassesFilterAndClampedTopK(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	index := &fakeIndex{hits: []model.SearchHit{{ID: "q1", Score: 0.9}}}
	s := NewSearcher(embedder, index)

	hits, err := s.Search(context.Background(), &model.ParsedIntent{
		Total:   50,
		Type:    model.RecordTypeFlashcard,
		Context: "skull osteology",
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t, "skull osteology", embedder.lastText)
	assert.Equal(t, model.RecordTypeFlashcard, index.lastFilter.Type)
	assert.Equal(t, MaxTopK, index.lastTopK)
}

func TestSearcherEmbedFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	index := &fakeIndex{}
	s := NewSearcher(embedder, index)

	_, err := s.Search(context.Background(), &model.ParsedIntent{
		Total:   3,
		Type:    model.RecordTypeQuestion,
		Context: "bones",
	})
	require.Error(t, err)
	assert.True(t, IsTransientError(err))
	assert.Zero(t, index.queryCalls)
}

func TestSearcherIndexFailure(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	index := &fakeIndex{err: errors.New("collection not loaded")}
	s := NewSearcher(embedder, index)

	_, err := s.Search(context.Background(), &model.ParsedIntent{
		Total:   3,
		Type:    model.RecordTypeQuestion,
		Context: "bones",
	})
	require.Error(t, err)
	assert.True(t, IsTransientError(err))
}
