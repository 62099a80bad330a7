package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/studyrag/internal/model"
)

func newTestService(t *testing.T, chat *fakeChatProvider, embedder *fakeEmbedder, index *fakeIndex) *Service {
	t.Helper()
	content := newTestContentStore(t)
	hydrator, err := NewHydrator(content, 2)
	require.NoError(t, err)
	t.Cleanup(hydrator.Release)

	return NewService(&ServiceConfig{
		Parser:     NewIntentParser(chat, newTestMatcher(t)),
		Searcher:   NewSearcher(embedder, index),
		Hydrator:   hydrator,
		Generator:  NewGenerator(chat, &GeneratorConfig{SystemPrompt: "You are a study assistant."}),
		Content:    content,
		Index:      index,
		Vocabulary: &model.Vocabulary{
			Subjects: []string{"Anatomy"},
			Topics:   []string{"Osteology"},
		},
	})
}

func collectEvents(s *Service, query string) ([]Event, *model.QueryResponse, error) {
	var events []Event
	resp, err := s.execute(context.Background(), query, func(ev Event) {
		events = append(events, ev)
	})
	return events, resp, err
}

func eventNames(events []Event) []EventName {
	names := make([]EventName, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	return names
}

func TestQueryEmptyRejectedBeforeAnyStage(t *testing.T) {
	chat := &fakeChatProvider{content: "{}"}
	s := newTestService(t, chat, &fakeEmbedder{}, &fakeIndex{})

	events, resp, err := collectEvents(s, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Nil(t, resp)
	assert.Empty(t, events)
	assert.Zero(t, chat.calls)
}

func TestQueryRetrievalPath(t *testing.T) {
	chat := &fakeChatProvider{content: `{"total":2,"user_query":"skull bones","type":"question","pre-prompt":"be brief","context":"skull osteology","topics":[{"topic":["osteology"]}]}`}
	index := &fakeIndex{hits: []model.SearchHit{
		{ID: "q1", Score: 0.92, Subject: "Anatomy", Topic: "Osteology", Type: model.RecordTypeQuestion},
		{ID: "missing", Score: 0.80, Type: model.RecordTypeQuestion},
	}}
	s := newTestService(t, chat, &fakeEmbedder{vector: []float32{0.1, 0.2}}, index)

	events, resp, err := collectEvents(s, "give me skull questions")
	require.NoError(t, err)

	assert.Equal(t, []EventName{
		EventParsing, EventPrePrompt, EventSearching, EventFetching, EventComplete,
	}, eventNames(events))

	require.NotNil(t, resp)
	assert.Equal(t, 2, resp.Metadata.TotalResults)
	assert.Equal(t, model.RecordTypeQuestion, resp.Metadata.QueryType)
	assert.Empty(t, resp.LLMResponse)

	require.Len(t, resp.Results, 2)
	assert.NotNil(t, resp.Results[0].Content)
	assert.Nil(t, resp.Results[1].Content)

	// 检索分支只调用一次 LLM（意图解析），不做回答生成
	assert.Equal(t, 1, chat.calls)
}

func TestQueryGeneralPathSkipsSearch(t *testing.T) {
	chat := &fakeChatProvider{content: `{"total":0,"user_query":"what is anatomy","type":"general","pre-prompt":"","context":"anatomy basics","topics":[]}`}
	index := &fakeIndex{}
	s := newTestService(t, chat, &fakeEmbedder{vector: []float32{0.1}}, index)

	// 第二次 LLM 调用（回答生成）也返回同一 content，但对断言无影响
	events, resp, err := collectEvents(s, "what is anatomy")
	require.NoError(t, err)

	assert.Equal(t, []EventName{
		EventParsing, EventGenerating, EventComplete,
	}, eventNames(events))

	require.NotNil(t, resp)
	assert.Zero(t, index.queryCalls)
	assert.NotEmpty(t, resp.LLMResponse)
	assert.Equal(t, 2, chat.calls)
}

func TestQueryEmptyContextFallsBackToGeneration(t *testing.T) {
	chat := &fakeChatProvider{content: `{"total":3,"user_query":"q","type":"question","pre-prompt":"","context":"","topics":[]}`}
	index := &fakeIndex{}
	s := newTestService(t, chat, &fakeEmbedder{vector: []float32{0.1}}, index)

	events, _, err := collectEvents(s, "some question")
	require.NoError(t, err)

	assert.Equal(t, []EventName{
		EventParsing, EventGenerating, EventComplete,
	}, eventNames(events))
	assert.Zero(t, index.queryCalls)
}

func TestQueryEmptyHitsCompletesWithoutGeneration(t *testing.T) {
	chat := &fakeChatProvider{content: `{"total":3,"user_query":"q","type":"flashcard","pre-prompt":"","context":"obscure topic","topics":[]}`}
	index := &fakeIndex{hits: nil}
	s := newTestService(t, chat, &fakeEmbedder{vector: []float32{0.1}}, index)

	events, resp, err := collectEvents(s, "flashcards please")
	require.NoError(t, err)

	assert.Equal(t, []EventName{
		EventParsing, EventSearching, EventComplete,
	}, eventNames(events))

	require.NotNil(t, resp)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.LLMResponse)
	assert.Equal(t, 1, chat.calls)
}

func TestQueryIntentParseFailureEmitsError(t *testing.T) {
	chat := &fakeChatProvider{content: "not json at all"}
	s := newTestService(t, chat, &fakeEmbedder{}, &fakeIndex{})

	events, resp, err := collectEvents(s, "questions")
	require.Error(t, err)
	assert.True(t, IsIntentParseError(err))
	assert.Nil(t, resp)

	assert.Equal(t, []EventName{EventParsing, EventError}, eventNames(events))
}

func TestQuerySearchFailureEmitsError(t *testing.T) {
	chat := &fakeChatProvider{content: `{"total":3,"user_query":"q","type":"question","pre-prompt":"","context":"bones","topics":[]}`}
	index := &fakeIndex{err: errors.New("milvus unavailable")}
	s := newTestService(t, chat, &fakeEmbedder{vector: []float32{0.1}}, index)

	events, _, err := collectEvents(s, "questions about bones")
	require.Error(t, err)
	assert.True(t, IsTransientError(err))

	assert.Equal(t, []EventName{EventParsing, EventSearching, EventError}, eventNames(events))
}

func TestQueryStreamClosesAfterComplete(t *testing.T) {
	chat := &fakeChatProvider{content: `{"total":0,"user_query":"q","type":"general","pre-prompt":"","context":"c","topics":[]}`}
	s := newTestService(t, chat, &fakeEmbedder{}, &fakeIndex{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var names []EventName
	for ev := range s.QueryStream(ctx, "what is anatomy") {
		names = append(names, ev.Name)
	}

	require.NotEmpty(t, names)
	assert.Equal(t, EventComplete, names[len(names)-1])
}

func TestQueryStreamEmptyQueryEmitsError(t *testing.T) {
	chat := &fakeChatProvider{content: "{}"}
	s := newTestService(t, chat, &fakeEmbedder{}, &fakeIndex{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var names []EventName
	for ev := range s.QueryStream(ctx, "") {
		names = append(names, ev.Name)
	}

	require.Len(t, names, 1)
	assert.Equal(t, EventError, names[0])
}

func TestServiceStats(t *testing.T) {
	chat := &fakeChatProvider{content: "{}"}
	index := &fakeIndex{rows: 42}
	s := newTestService(t, chat, &fakeEmbedder{}, index)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)

	corpus, ok := stats["corpus"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2, corpus["questions"])
	assert.Equal(t, 2, corpus["flashcards"])

	idx, ok := stats["index"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(42), idx["row_count"])
}

func TestServiceVocabulary(t *testing.T) {
	s := newTestService(t, &fakeChatProvider{content: "{}"}, &fakeEmbedder{}, &fakeIndex{})
	vocab := s.Vocabulary()
	require.NotNil(t, vocab)
	assert.Equal(t, []string{"Anatomy"}, vocab.Subjects)
}
