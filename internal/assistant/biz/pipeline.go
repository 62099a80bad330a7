package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/assistant/metrics"
	"github.com/kart-io/studyrag/internal/model"
)

// execute 驱动单次查询的线性状态机，阶段事件通过 emit 发布。
//
// 流转：parsing → (searching → fetching)? → generating? → complete，
// 任意阶段失败发布 error 事件并返回。general 类型或上下文为空时跳过
// 检索，直接生成回答；检索命中为空直接完成。
func (s *Service) execute(ctx context.Context, query string, emit EmitFunc) (*model.QueryResponse, error) {
	if strings.TrimSpace(query) == "" {
		// 空查询在进入任何阶段前拒绝，不发布事件
		return nil, ErrEmptyQuery
	}

	mtr := metrics.Get()

	// 缓存命中直接完成
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, query); err == nil && cached != nil {
			mtr.RecordQuery(true, nil)
			emit(Event{Name: EventComplete, Data: cached})
			return cached, nil
		}
	}

	// 阶段一：意图解析
	emit(Event{Name: EventParsing})
	intent, err := s.parser.Parse(ctx, query)
	mtr.RecordIntentParse(err)
	if err != nil {
		mtr.RecordQuery(false, err)
		emit(Event{Name: EventError, Data: err.Error()})
		return nil, err
	}
	if intent.PrePrompt != "" {
		emit(Event{Name: EventPrePrompt, Data: intent.PrePrompt})
	}

	var results []model.HydratedResult

	// 阶段二/三：检索 + 水合。general 或上下文为空时跳过检索，
	// 改由 LLM 直接回答。
	retrieval := intent.Type != model.RecordTypeGeneral && strings.TrimSpace(intent.Context) != ""
	if retrieval {
		emit(Event{Name: EventSearching})
		searchStart := time.Now()
		hits, err := s.searcher.Search(ctx, intent)
		mtr.RecordSearch(time.Since(searchStart), err)
		if err != nil {
			mtr.RecordQuery(false, err)
			emit(Event{Name: EventError, Data: err.Error()})
			return nil, err
		}

		if len(hits) > 0 {
			emit(Event{Name: EventFetching})
			results = s.hydrator.Hydrate(hits)

			misses := 0
			for _, r := range results {
				if r.Content == nil {
					misses++
				}
			}
			mtr.RecordHydration(len(results)-misses, misses)
		}
	}

	resp := &model.QueryResponse{
		Parsed:  intent,
		Results: results,
		Metadata: model.QueryMetadata{
			TotalResults: len(results),
			QueryType:    intent.Type,
			Context:      intent.Context,
		},
	}

	// 阶段四：回答生成。仅在未走检索分支时触发。
	if !retrieval {
		emit(Event{Name: EventGenerating})
		genStart := time.Now()
		answer, err := s.generator.GenerateAnswer(ctx, intent, results)
		if err != nil {
			mtr.RecordLLMCall(time.Since(genStart), 0, 0, err)
			mtr.RecordQuery(false, err)
			emit(Event{Name: EventError, Data: err.Error()})
			return nil, err
		}
		prompt, completion := 0, 0
		if answer.TokenUsage != nil {
			prompt = answer.TokenUsage.PromptTokens
			completion = answer.TokenUsage.CompletionTokens
		}
		mtr.RecordLLMCall(time.Since(genStart), prompt, completion, nil)
		resp.LLMResponse = answer.Content
	}

	emit(Event{Name: EventComplete, Data: resp})
	mtr.RecordQuery(false, nil)

	if s.cache != nil {
		if err := s.cache.Set(ctx, query, resp); err != nil {
			logger.Warnw("failed to cache query response", "error", err.Error())
		}
	}

	return resp, nil
}
