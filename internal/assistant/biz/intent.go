package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/llm"
	"github.com/kart-io/studyrag/pkg/utils/json"
)

// DefaultResultCount 未指定数量时的默认检索条数。
const DefaultResultCount = 3

// intentSystemPrompt 意图解析的固定指令，要求 LLM 输出结构化 JSON。
const intentSystemPrompt = `You analyze a student's study request and return ONLY a JSON object, no prose, with exactly these fields:
{
  "total": <number of items requested, 0 if unspecified>,
  "user_query": "<search query rewritten for semantic retrieval>",
  "type": "<question | flashcard | general>",
  "pre-prompt": "<instruction the student gave about how to answer, empty if none>",
  "context": "<the study material/topic the request is about, empty if none>",
  "topics": [{"topic": ["<subject or topic name>", ...]}]
}
Use "question" when the student wants practice/multiple-choice questions,
"flashcard" when they want flashcards, "general" otherwise.
Topic names must come from the request itself.`

// rawIntent 意图解析 JSON 契约的原始形状。
type rawIntent struct {
	Total     int             `json:"total"`
	UserQuery string          `json:"user_query"`
	Type      string          `json:"type"`
	PrePrompt string          `json:"pre-prompt"`
	Context   string          `json:"context"`
	Topics    []rawTopicGroup `json:"topics"`
}

type rawTopicGroup struct {
	Topic []string `json:"topic"`
}

// IntentParser 基于 Chat LLM 的查询意图解析器。
type IntentParser struct {
	chatProvider llm.ChatProvider
	matcher      *Matcher
}

// NewIntentParser 创建意图解析器。
func NewIntentParser(chatProvider llm.ChatProvider, matcher *Matcher) *IntentParser {
	return &IntentParser{
		chatProvider: chatProvider,
		matcher:      matcher,
	}
}

// Parse 调用 LLM 解析查询意图，并将学科/主题对齐到词表。
// LLM 输出不是合法 JSON 时返回 IntentParseError，调用失败返回 TransientError。
func (p *IntentParser) Parse(ctx context.Context, query string) (*model.ParsedIntent, error) {
	resp, err := p.chatProvider.Generate(ctx, query, intentSystemPrompt)
	if err != nil {
		return nil, &TransientError{Op: "intent generation", Err: err}
	}

	raw, err := decodeIntent(resp.Content)
	if err != nil {
		logger.Warnw("intent parse failed", "raw", resp.Content, "error", err.Error())
		return nil, &IntentParseError{Raw: resp.Content, Err: err}
	}

	intent := &model.ParsedIntent{
		Total:     raw.Total,
		UserQuery: strings.TrimSpace(raw.UserQuery),
		Type:      model.NormalizeRecordType(raw.Type),
		PrePrompt: strings.TrimSpace(raw.PrePrompt),
		Context:   strings.TrimSpace(raw.Context),
	}
	if intent.Total <= 0 {
		intent.Total = DefaultResultCount
	}
	if intent.UserQuery == "" {
		intent.UserQuery = query
	}

	// 展平 topics 分组后对齐词表，未命中的词静默丢弃
	candidates := flattenTopics(raw.Topics)
	if p.matcher != nil {
		intent.Subjects = p.matcher.MatchSubjects(candidates)
		intent.Topics = p.matcher.MatchTopics(candidates)
	}

	logger.Infow("intent parsed",
		"type", string(intent.Type),
		"total", intent.Total,
		"subjects", intent.Subjects,
		"topics", intent.Topics,
	)
	return intent, nil
}

func flattenTopics(groups []rawTopicGroup) []string {
	var out []string
	for _, g := range groups {
		for _, t := range g.Topic {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// decodeIntent 去除 markdown 代码块包装后解析 JSON。
func decodeIntent(content string) (*rawIntent, error) {
	cleaned := stripCodeFence(content)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var raw rawIntent
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &raw, nil
}

// stripCodeFence 去除 ```json ... ``` 包装，LLM 经常给 JSON 加代码块。
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// 丢弃语言标记行（如 "json"）
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
