package biz

import (
	"fmt"
	"os"
	"sync"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/utils/json"
)

// ContentStore 按 ID 提供语料内容的水合查询。
// 语料在启动时全量加载为内存映射，之后只读。
type ContentStore struct {
	flashcards map[string]*model.Record
	questions  map[string]*model.Record
}

// NewContentStore 从语料文件加载内容存储。路径为空时对应语料为空集。
func NewContentStore(questionsPath, flashcardsPath string) (*ContentStore, error) {
	questions, err := loadRecords(questionsPath)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	flashcards, err := loadRecords(flashcardsPath)
	if err != nil {
		return nil, fmt.Errorf("load flashcards: %w", err)
	}

	logger.Infow("content store loaded",
		"questions", len(questions),
		"flashcards", len(flashcards),
	)
	return &ContentStore{
		questions:  questions,
		flashcards: flashcards,
	}, nil
}

func loadRecords(path string) (map[string]*model.Record, error) {
	out := make(map[string]*model.Record)
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range records {
		r := &records[i]
		if r.ID == "" {
			continue
		}
		out[r.ID] = r
	}
	return out, nil
}

// FetchByID 按 ID 查找语料内容，卡片集合优先于题目集合。
// 两个集合都未命中时返回 nil，不视为错误。
func (c *ContentStore) FetchByID(id string) *model.RecordContent {
	if r, ok := c.flashcards[id]; ok {
		return &model.RecordContent{
			Type: model.RecordTypeFlashcard,
			Content: model.FlashcardContent{
				FrontContent: r.FrontContent,
				BackContent:  r.BackContent,
			},
		}
	}
	if r, ok := c.questions[id]; ok {
		return &model.RecordContent{
			Type: model.RecordTypeQuestion,
			Content: model.QuestionContent{
				QuestionText: r.QuestionText,
				Explanation:  r.Explanation,
				Options:      r.Options,
			},
		}
	}
	return nil
}

// Counts 返回各类型语料数量。
func (c *ContentStore) Counts() (questions, flashcards int) {
	return len(c.questions), len(c.flashcards)
}

// Hydrator 并发水合检索命中的内容。
type Hydrator struct {
	content *ContentStore
	pool    *ants.Pool
}

// NewHydrator 创建水合器。poolSize <= 0 时不使用协程池，退化为裸 goroutine。
func NewHydrator(content *ContentStore, poolSize int) (*Hydrator, error) {
	h := &Hydrator{content: content}
	if poolSize > 0 {
		pool, err := ants.NewPool(poolSize)
		if err != nil {
			return nil, fmt.Errorf("create hydration pool: %w", err)
		}
		h.pool = pool
	}
	return h, nil
}

// Hydrate 并发水合所有命中，保持输入顺序。
// 语料缺失的命中退化为 nil 内容，保留命中字段本身。
func (h *Hydrator) Hydrate(hits []model.SearchHit) []model.HydratedResult {
	results := make([]model.HydratedResult, len(hits))

	var wg sync.WaitGroup
	for i, hit := range hits {
		wg.Add(1)
		task := func(i int, hit model.SearchHit) func() {
			return func() {
				defer wg.Done()
				results[i] = model.HydratedResult{
					SearchHit: hit,
					Content:   h.content.FetchByID(hit.ID),
				}
			}
		}(i, hit)

		if h.pool != nil {
			if err := h.pool.Submit(task); err != nil {
				// 池不可用时退化为裸 goroutine
				go task()
			}
		} else {
			go task()
		}
	}
	wg.Wait()

	return results
}

// Release 释放协程池。
func (h *Hydrator) Release() {
	if h.pool != nil {
		h.pool.Release()
	}
}
