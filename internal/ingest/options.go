package ingest

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	assistantopts "github.com/kart-io/studyrag/pkg/options/assistant"
	llmopts "github.com/kart-io/studyrag/pkg/options/llm"
	logopts "github.com/kart-io/studyrag/pkg/options/logger"
	milvusopts "github.com/kart-io/studyrag/pkg/options/milvus"
)

// Options contains all ingestion job options.
type Options struct {
	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Milvus contains Milvus database configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Embedding contains embedding provider configuration.
	Embedding *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Assistant contains collection and corpus path configuration.
	Assistant *assistantopts.Options `json:"assistant" mapstructure:"assistant"`

	// BatchSize 每批嵌入并写入的记录数。
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`

	// MaxAttempts 每批最大尝试次数。
	MaxAttempts int `json:"max-attempts" mapstructure:"max-attempts"`

	// BackoffBase 批次重试的退避基准时间。
	BackoffBase time.Duration `json:"backoff-base" mapstructure:"backoff-base"`

	// MetadataOnly 只构建词表 metadata，不写入向量索引。
	MetadataOnly bool `json:"metadata-only" mapstructure:"metadata-only"`

	// Rebuild 写入前删除集合，按当前 schema 全量重建索引。
	Rebuild bool `json:"rebuild" mapstructure:"rebuild"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Log:         logopts.NewOptions(),
		Milvus:      milvusopts.NewOptions(),
		Embedding:   llmopts.NewEmbeddingOptions(),
		Assistant:   assistantopts.NewOptions(),
		BatchSize:   100,
		MaxAttempts: 3,
		BackoffBase: 1000 * time.Millisecond,
	}
}

// AddFlags adds all ingestion flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Log.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Embedding.AddFlags(fs, "embedding")
	o.Assistant.AddFlags(fs)

	fs.IntVar(&o.BatchSize, "ingest.batch-size", o.BatchSize, "Number of records per embedding batch.")
	fs.IntVar(&o.MaxAttempts, "ingest.max-attempts", o.MaxAttempts, "Maximum attempts per batch, including the first.")
	fs.DurationVar(&o.BackoffBase, "ingest.backoff-base", o.BackoffBase, "Base duration for exponential retry backoff.")
	fs.BoolVar(&o.MetadataOnly, "metadata-only", o.MetadataOnly, "Only build the vocabulary metadata artifact, skip indexing.")
	fs.BoolVar(&o.Rebuild, "ingest.rebuild", o.Rebuild, "Drop the collection before indexing and rebuild it from scratch.")
}

// Validate validates the ingestion options.
func (o *Options) Validate() error {
	var errs []error
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !o.MetadataOnly {
		errs = append(errs, o.Milvus.Validate()...)
		errs = append(errs, o.Embedding.Validate()...)
	}
	errs = append(errs, o.Assistant.Validate()...)

	if o.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.batch-size must be positive"))
	}
	if o.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("ingest.max-attempts must be positive"))
	}
	if o.BackoffBase <= 0 {
		errs = append(errs, fmt.Errorf("ingest.backoff-base must be positive"))
	}
	if o.Rebuild && o.MetadataOnly {
		errs = append(errs, fmt.Errorf("ingest.rebuild cannot be combined with metadata-only"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid options: %v", errs)
	}
	return nil
}

// Complete completes the ingestion options with defaults.
func (o *Options) Complete() error {
	if err := o.Log.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	return o.Assistant.Complete()
}
