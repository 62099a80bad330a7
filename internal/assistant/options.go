// Package assistant provides the study-assistant service application.
package assistant

import (
	"fmt"

	"github.com/spf13/pflag"

	assistantopts "github.com/kart-io/studyrag/pkg/options/assistant"
	cacheopts "github.com/kart-io/studyrag/pkg/options/cache"
	llmopts "github.com/kart-io/studyrag/pkg/options/llm"
	logopts "github.com/kart-io/studyrag/pkg/options/logger"
	milvusopts "github.com/kart-io/studyrag/pkg/options/milvus"
	httpopts "github.com/kart-io/studyrag/pkg/options/server/http"
)

// Options contains all study-assistant service options.
type Options struct {
	// HTTP contains HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains Milvus database configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// Assistant contains pipeline configuration.
	Assistant *assistantopts.Options `json:"assistant" mapstructure:"assistant"`

	// Cache contains query cache configuration.
	Cache *cacheopts.Options `json:"cache" mapstructure:"cache"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		HTTP:      httpopts.NewOptions(),
		Log:       logopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Chat:      llmopts.NewChatOptions(),
		Assistant: assistantopts.NewOptions(),
		Cache:     cacheopts.NewOptions(),
	}
}

// AddFlags adds all service flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Chat.AddFlags(fs, "chat")
	o.Assistant.AddFlags(fs)
	o.Cache.AddFlags(fs)
}

// Validate validates all options.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.HTTP.Validate()...)
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.Milvus.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)
	errs = append(errs, o.Assistant.Validate()...)
	errs = append(errs, o.Cache.Validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("invalid options: %v", errs)
	}
	return nil
}

// Complete completes all options with defaults.
func (o *Options) Complete() error {
	if err := o.HTTP.Complete(); err != nil {
		return err
	}
	if err := o.Log.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if err := o.Chat.Complete(); err != nil {
		return err
	}
	if err := o.Assistant.Complete(); err != nil {
		return err
	}
	return o.Cache.Complete()
}
