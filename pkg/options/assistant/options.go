// Package assistant provides study-assistant pipeline configuration options.
package assistant

import (
	"fmt"

	"github.com/kart-io/studyrag/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains study-assistant specific configuration.
type Options struct {
	// Collection is the name of the Milvus collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// VocabularyPath 学科/主题词表文件路径。
	VocabularyPath string `json:"vocabulary-path" mapstructure:"vocabulary-path"`

	// QuestionsPath 题目语料文件路径。
	QuestionsPath string `json:"questions-path" mapstructure:"questions-path"`

	// FlashcardsPath 卡片语料文件路径。
	FlashcardsPath string `json:"flashcards-path" mapstructure:"flashcards-path"`

	// MatchThreshold 主题模糊匹配的归一化编辑距离阈值。
	MatchThreshold float64 `json:"match-threshold" mapstructure:"match-threshold"`

	// AnswerPrompt is the system prompt used when generating the final answer.
	AnswerPrompt string `json:"answer-prompt" mapstructure:"answer-prompt"`
}

// DefaultAnswerPrompt is the default system prompt for answer generation.
const DefaultAnswerPrompt = `You are a study assistant helping a student review course material.
Answer using only the retrieved questions and flashcards provided as context.
If the context does not contain the answer, say so instead of guessing.`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Collection:     "study_records",
		EmbeddingDim:   1536, // text-embedding-ada-002 dimension
		VocabularyPath: "data/vocabulary.json",
		QuestionsPath:  "data/questions.json",
		FlashcardsPath: "data/flashcards.json",
		MatchThreshold: 0.2,
		AnswerPrompt:   DefaultAnswerPrompt,
	}
}

// AddFlags adds flags for assistant options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"assistant.collection", o.Collection, "Milvus collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"assistant.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.VocabularyPath, options.Join(prefixes...)+"assistant.vocabulary-path", o.VocabularyPath, "Path to the subject/topic vocabulary file.")
	fs.StringVar(&o.QuestionsPath, options.Join(prefixes...)+"assistant.questions-path", o.QuestionsPath, "Path to the questions corpus file.")
	fs.StringVar(&o.FlashcardsPath, options.Join(prefixes...)+"assistant.flashcards-path", o.FlashcardsPath, "Path to the flashcards corpus file.")
	fs.Float64Var(&o.MatchThreshold, options.Join(prefixes...)+"assistant.match-threshold", o.MatchThreshold, "Normalized edit-distance threshold for topic matching.")
	fs.StringVar(&o.AnswerPrompt, options.Join(prefixes...)+"assistant.answer-prompt", o.AnswerPrompt, "System prompt for answer generation.")
}

// Validate validates the assistant options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.MatchThreshold < 0 || o.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("match-threshold must be in [0, 1]"))
	}
	return errs
}

// Complete completes the assistant options with defaults.
func (o *Options) Complete() error {
	if o.AnswerPrompt == "" {
		o.AnswerPrompt = DefaultAnswerPrompt
	}
	if o.MatchThreshold == 0 {
		o.MatchThreshold = 0.2
	}
	return nil
}
