package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/llm"
)

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// SystemPrompt 回答生成的系统提示词。
	SystemPrompt string
}

// Generator 负责基于检索结果生成回答。
type Generator struct {
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
}

// NewGenerator 创建生成器实例。
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig) *Generator {
	return &Generator{
		chatProvider: chatProvider,
		config:       config,
	}
}

// GenerateAnswer 根据意图与水合结果生成回答。
// 无检索结果时直接让 LLM 回答原始查询（general 分支）。
func (g *Generator) GenerateAnswer(ctx context.Context, intent *model.ParsedIntent, results []model.HydratedResult) (*llm.GenerateResponse, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled before generation: %w", ctx.Err())
	}

	prompt := g.buildPrompt(intent, results)

	logger.Info("Calling LLM to generate answer...")
	resp, err := g.chatProvider.Generate(ctx, prompt, g.config.SystemPrompt)
	if err != nil {
		logger.Errorf("LLM generation failed: %v", err)
		return nil, &TransientError{Op: "answer generation", Err: err}
	}

	if resp.TokenUsage != nil {
		logger.Infof("LLM answer generated (length: %d, tokens: %d)",
			len(resp.Content), resp.TokenUsage.TotalTokens)
	} else {
		logger.Infof("LLM answer generated (length: %d)", len(resp.Content))
	}

	return resp, nil
}

// buildPrompt 构建用户侧提示词：pre-prompt + 查询 + 检索到的语料上下文。
func (g *Generator) buildPrompt(intent *model.ParsedIntent, results []model.HydratedResult) string {
	var b strings.Builder

	if intent.PrePrompt != "" {
		b.WriteString(intent.PrePrompt)
		b.WriteString("\n\n")
	}
	b.WriteString("Request: ")
	b.WriteString(intent.UserQuery)
	b.WriteString("\n")

	withContent := 0
	for i, r := range results {
		if r.Content == nil {
			continue
		}
		if withContent == 0 {
			b.WriteString("\nRetrieved study material:\n")
		}
		withContent++

		switch content := r.Content.Content.(type) {
		case model.QuestionContent:
			b.WriteString(fmt.Sprintf("[%d] Question (%s / %s): %s\n", i+1, r.Subject, r.Topic, content.QuestionText))
			for _, opt := range content.Options {
				marker := " "
				if opt.IsCorrect {
					marker = "*"
				}
				b.WriteString(fmt.Sprintf("  %s %s\n", marker, opt.Text))
			}
			if content.Explanation != "" {
				b.WriteString("  Explanation: ")
				b.WriteString(content.Explanation)
				b.WriteString("\n")
			}
		case model.FlashcardContent:
			b.WriteString(fmt.Sprintf("[%d] Flashcard (%s / %s): %s :: %s\n",
				i+1, r.Subject, r.Topic, content.FrontContent, content.BackContent))
		}
	}

	return b.String()
}
