package biz

import (
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/utils/json"
)

// LoadVocabulary 从 JSON 文件加载学科/主题词表。
func LoadVocabulary(path string) (*model.Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	var vocab model.Vocabulary
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file: %w", err)
	}
	return &vocab, nil
}

// vocabTerm 预先归一化的词表条目。
type vocabTerm struct {
	canonical string
	folded    string
}

// Matcher 将 LLM 输出的学科/主题名对齐到词表的规范形式。
// 使用归一化编辑距离（距离除以较长字符串长度）容忍拼写误差。
type Matcher struct {
	subjects  []vocabTerm
	topics    []vocabTerm
	threshold float64
}

// NewMatcher 创建词表匹配器。threshold 为归一化编辑距离上限。
func NewMatcher(vocab *model.Vocabulary, threshold float64) *Matcher {
	m := &Matcher{threshold: threshold}
	if vocab == nil {
		return m
	}
	m.subjects = foldTerms(vocab.Subjects)
	m.topics = foldTerms(vocab.Topics)
	return m
}

func foldTerms(terms []string) []vocabTerm {
	out := make([]vocabTerm, 0, len(terms))
	for _, t := range terms {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			continue
		}
		out = append(out, vocabTerm{
			canonical: trimmed,
			folded:    strings.ToLower(trimmed),
		})
	}
	return out
}

// MatchSubject 将输入对齐到词表中的学科，未命中返回 false。
func (m *Matcher) MatchSubject(raw string) (string, bool) {
	return match(m.subjects, raw, m.threshold)
}

// MatchTopic 将输入对齐到词表中的主题，未命中返回 false。
func (m *Matcher) MatchTopic(raw string) (string, bool) {
	return match(m.topics, raw, m.threshold)
}

// MatchSubjects 批量对齐学科，丢弃未命中的项并去重。
func (m *Matcher) MatchSubjects(raws []string) []string {
	return matchAll(m.subjects, raws, m.threshold)
}

// MatchTopics 批量对齐主题，丢弃未命中的项并去重。
func (m *Matcher) MatchTopics(raws []string) []string {
	return matchAll(m.topics, raws, m.threshold)
}

func match(terms []vocabTerm, raw string, threshold float64) (string, bool) {
	folded := strings.ToLower(strings.TrimSpace(raw))
	if folded == "" {
		return "", false
	}

	best := ""
	bestScore := threshold
	found := false
	for _, t := range terms {
		// 完全一致直接返回
		if t.folded == folded {
			return t.canonical, true
		}
		score := normalizedDistance(folded, t.folded)
		if score < bestScore || (!found && score == bestScore) {
			best = t.canonical
			bestScore = score
			found = true
		}
	}
	return best, found
}

func matchAll(terms []vocabTerm, raws []string, threshold float64) []string {
	seen := make(map[string]bool, len(raws))
	var out []string
	for _, raw := range raws {
		if canonical, ok := match(terms, raw, threshold); ok && !seen[canonical] {
			seen[canonical] = true
			out = append(out, canonical)
		}
	}
	return out
}

// normalizedDistance 返回编辑距离除以较长字符串的长度。
func normalizedDistance(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(dist) / float64(maxLen)
}
