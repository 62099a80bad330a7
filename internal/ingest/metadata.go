package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/utils/json"
)

// BuildVocabulary 扫描语料源，导出排序去重后的学科/主题词表
// 及其去重后的规模计数。
func BuildVocabulary(sources []Source) (*model.Vocabulary, error) {
	subjects := make(map[string]bool)
	topics := make(map[string]bool)

	for _, src := range sources {
		reader, err := NewReader(src.Path)
		if err != nil {
			return nil, err
		}

		for {
			record, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				if errors.Is(err, ErrBadRecord) {
					logger.Warnw("skipping malformed record in vocabulary scan", "error", err.Error())
					continue
				}
				_ = reader.Close()
				return nil, err
			}

			if record.Subject != "" {
				subjects[record.Subject] = true
			}
			if record.Topic != "" {
				topics[record.Topic] = true
			}
		}
		_ = reader.Close()
	}

	vocab := &model.Vocabulary{
		Subjects: sortedKeys(subjects),
		Topics:   sortedKeys(topics),
		Counts: model.VocabularyCounts{
			Subjects: len(subjects),
			Topics:   len(topics),
		},
	}
	return vocab, nil
}

// WriteVocabulary 将词表写入 metadata 文件。
func WriteVocabulary(path string, vocab *model.Vocabulary) error {
	data, err := json.MarshalIndent(vocab, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vocabulary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write vocabulary: %w", err)
	}

	logger.Infow("vocabulary written",
		"path", path,
		"subjects", len(vocab.Subjects),
		"topics", len(vocab.Topics),
	)
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
