// Package model provides data models for the study assistant.
package model

import "strings"

// RecordType 语料记录类型。
type RecordType string

const (
	// RecordTypeQuestion 选择题。
	RecordTypeQuestion RecordType = "question"
	// RecordTypeFlashcard 记忆卡片。
	RecordTypeFlashcard RecordType = "flashcard"
	// RecordTypeGeneral 不限类型，检索时不加类型过滤。
	RecordTypeGeneral RecordType = "general"
)

// NormalizeRecordType 将 LLM 返回的自由文本类型归一化为已知类型。
// 先匹配 flashcard 再匹配 question，其余一律视为 general。
func NormalizeRecordType(raw string) RecordType {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lowered, "flashcard"):
		return RecordTypeFlashcard
	case strings.Contains(lowered, "question"):
		return RecordTypeQuestion
	default:
		return RecordTypeGeneral
	}
}

// Option 选择题的一个选项。
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Record 一条语料记录，question 和 flashcard 共用同一结构，
// 按 Type 决定哪些内容字段有效。
type Record struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Topic   string `json:"topic"`

	// 选择题字段
	QuestionText string   `json:"question_text,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
	Options      []Option `json:"options,omitempty"`

	// 卡片字段
	FrontContent string `json:"front_content,omitempty"`
	BackContent  string `json:"back_content,omitempty"`
}

// EmbeddingText 返回用于生成向量嵌入的文本表示。
func (r *Record) EmbeddingText(typ RecordType) string {
	var b strings.Builder
	b.WriteString(r.Subject)
	b.WriteString(" ")
	b.WriteString(r.Topic)
	b.WriteString(" ")
	switch typ {
	case RecordTypeFlashcard:
		b.WriteString(r.FrontContent)
		b.WriteString(" ")
		b.WriteString(r.BackContent)
	default:
		b.WriteString(r.QuestionText)
		b.WriteString(" ")
		b.WriteString(r.Explanation)
		for _, opt := range r.Options {
			b.WriteString(" ")
			b.WriteString(opt.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// QuestionContent 选择题的展示内容。
type QuestionContent struct {
	QuestionText string   `json:"questionText"`
	Explanation  string   `json:"explanation,omitempty"`
	Options      []Option `json:"options"`
}

// FlashcardContent 卡片的展示内容。
type FlashcardContent struct {
	FrontContent string `json:"frontContent"`
	BackContent  string `json:"backContent"`
}

// RecordContent 水合后记录的内容，Content 为 QuestionContent 或
// FlashcardContent；未命中任何语料时整体为 nil。
type RecordContent struct {
	Type    RecordType `json:"type"`
	Content any        `json:"content"`
}
