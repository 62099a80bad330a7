// Package metrics 提供学习助手服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// AssistantMetrics 学习助手业务指标。
type AssistantMetrics struct {
	// 查询指标
	queriesTotal       uint64 // 总查询次数
	queriesCacheHits   uint64 // 缓存命中次数
	queriesCacheMisses uint64 // 缓存未命中次数
	queriesErrors      uint64 // 查询错误次数

	// 意图解析指标
	intentParses      uint64 // 意图解析次数
	intentParseErrors uint64 // 意图解析失败次数

	// 向量检索指标
	searchTotal    uint64  // 总检索次数
	searchDuration float64 // 检索总耗时（秒）
	searchErrors   uint64  // 检索错误次数

	// 内容水合指标
	hydrationHits   uint64 // 成功取回内容的命中数
	hydrationMisses uint64 // 语料中缺失的命中数

	// LLM 调用指标
	llmCallsTotal       uint64  // LLM 总调用次数
	llmCallsDuration    float64 // LLM 调用总耗时（秒）
	llmCallsErrors      uint64  // LLM 调用错误次数
	llmTokensPrompt     uint64  // Prompt tokens 总数
	llmTokensCompletion uint64  // Completion tokens 总数

	// 摄取指标
	recordsIndexed uint64 // 已写入索引的记录数
	batchRetries   uint64 // 批次重试次数
	ingestErrors   uint64 // 摄取错误次数

	startTime  time.Time
	durationMu sync.Mutex
}

// globalMetrics 全局指标实例。
var (
	globalMetrics *AssistantMetrics
	metricsOnce   sync.Once
)

// Get 获取全局指标实例。
func Get() *AssistantMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &AssistantMetrics{
			startTime: time.Now(),
		}
	})
	return globalMetrics
}

// RecordQuery 记录查询。
func (m *AssistantMetrics) RecordQuery(cacheHit bool, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	if cacheHit {
		atomic.AddUint64(&m.queriesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.queriesCacheMisses, 1)
	}
}

// RecordIntentParse 记录意图解析。
func (m *AssistantMetrics) RecordIntentParse(err error) {
	atomic.AddUint64(&m.intentParses, 1)
	if err != nil {
		atomic.AddUint64(&m.intentParseErrors, 1)
	}
}

// RecordSearch 记录向量检索。
func (m *AssistantMetrics) RecordSearch(duration time.Duration, err error) {
	atomic.AddUint64(&m.searchTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.searchErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.searchDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordHydration 记录内容水合结果。
func (m *AssistantMetrics) RecordHydration(hits, misses int) {
	if hits > 0 {
		atomic.AddUint64(&m.hydrationHits, uint64(hits))
	}
	if misses > 0 {
		atomic.AddUint64(&m.hydrationMisses, uint64(misses))
	}
}

// RecordLLMCall 记录 LLM 调用。
func (m *AssistantMetrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()

	if promptTokens > 0 {
		atomic.AddUint64(&m.llmTokensPrompt, uint64(promptTokens))
	}
	if completionTokens > 0 {
		atomic.AddUint64(&m.llmTokensCompletion, uint64(completionTokens))
	}
}

// RecordIngest 记录摄取批次。
func (m *AssistantMetrics) RecordIngest(records int, err error) {
	if err != nil {
		atomic.AddUint64(&m.ingestErrors, 1)
		return
	}
	atomic.AddUint64(&m.recordsIndexed, uint64(records))
}

// RecordBatchRetry 记录批次重试。
func (m *AssistantMetrics) RecordBatchRetry() {
	atomic.AddUint64(&m.batchRetries, 1)
}

// Export 导出 Prometheus 格式指标。
func (m *AssistantMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}
	gauge := func(name, help string, value float64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s gauge\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %.4f\n\n", prefix, name, value))
	}

	counter("queries_total", "Total number of assistant queries.", atomic.LoadUint64(&m.queriesTotal))
	counter("queries_cache_hits_total", "Number of cache hits.", atomic.LoadUint64(&m.queriesCacheHits))
	counter("queries_cache_misses_total", "Number of cache misses.", atomic.LoadUint64(&m.queriesCacheMisses))
	counter("queries_errors_total", "Number of query errors.", atomic.LoadUint64(&m.queriesErrors))

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	total := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}
	gauge("cache_hit_rate", "Cache hit rate (0-1).", cacheHitRate)

	counter("intent_parses_total", "Total number of intent parses.", atomic.LoadUint64(&m.intentParses))
	counter("intent_parse_errors_total", "Number of intent parse failures.", atomic.LoadUint64(&m.intentParseErrors))

	counter("search_total", "Total number of vector searches.", atomic.LoadUint64(&m.searchTotal))
	counter("search_errors_total", "Number of search errors.", atomic.LoadUint64(&m.searchErrors))

	m.durationMu.Lock()
	searchDuration := m.searchDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()
	gauge("search_duration_seconds_total", "Total search duration.", searchDuration)

	counter("hydration_hits_total", "Retrieved hits with resolved content.", atomic.LoadUint64(&m.hydrationHits))
	counter("hydration_misses_total", "Retrieved hits missing from the corpus.", atomic.LoadUint64(&m.hydrationMisses))

	counter("llm_calls_total", "Total number of LLM calls.", atomic.LoadUint64(&m.llmCallsTotal))
	counter("llm_calls_errors_total", "Number of LLM call errors.", atomic.LoadUint64(&m.llmCallsErrors))
	gauge("llm_calls_duration_seconds_total", "Total LLM call duration.", llmDuration)
	counter("llm_tokens_prompt_total", "Total prompt tokens.", atomic.LoadUint64(&m.llmTokensPrompt))
	counter("llm_tokens_completion_total", "Total completion tokens.", atomic.LoadUint64(&m.llmTokensCompletion))

	counter("records_indexed_total", "Total records written to the index.", atomic.LoadUint64(&m.recordsIndexed))
	counter("batch_retries_total", "Number of ingestion batch retries.", atomic.LoadUint64(&m.batchRetries))
	counter("ingest_errors_total", "Number of ingestion errors.", atomic.LoadUint64(&m.ingestErrors))

	uptime := time.Since(m.startTime).Seconds()
	gauge("uptime_seconds", "Service uptime in seconds.", uptime)

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *AssistantMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	searchDuration := m.searchDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheTotal := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if cacheTotal > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheTotal)
	}

	searchTotal := atomic.LoadUint64(&m.searchTotal)
	avgSearchDuration := 0.0
	if searchTotal > 0 {
		avgSearchDuration = searchDuration / float64(searchTotal)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLMDuration := 0.0
	if llmTotal > 0 {
		avgLLMDuration = llmDuration / float64(llmTotal)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":          atomic.LoadUint64(&m.queriesTotal),
			"cache_hits":     cacheHits,
			"cache_misses":   cacheMisses,
			"cache_hit_rate": cacheHitRate,
			"errors":         atomic.LoadUint64(&m.queriesErrors),
		},
		"intent": map[string]interface{}{
			"parses": atomic.LoadUint64(&m.intentParses),
			"errors": atomic.LoadUint64(&m.intentParseErrors),
		},
		"search": map[string]interface{}{
			"total":               searchTotal,
			"total_duration_secs": searchDuration,
			"avg_duration_secs":   avgSearchDuration,
			"errors":              atomic.LoadUint64(&m.searchErrors),
		},
		"hydration": map[string]interface{}{
			"hits":   atomic.LoadUint64(&m.hydrationHits),
			"misses": atomic.LoadUint64(&m.hydrationMisses),
		},
		"llm": map[string]interface{}{
			"calls_total":         llmTotal,
			"total_duration_secs": llmDuration,
			"avg_duration_secs":   avgLLMDuration,
			"errors":              atomic.LoadUint64(&m.llmCallsErrors),
			"tokens_prompt":       atomic.LoadUint64(&m.llmTokensPrompt),
			"tokens_completion":   atomic.LoadUint64(&m.llmTokensCompletion),
		},
		"ingestion": map[string]interface{}{
			"records_indexed": atomic.LoadUint64(&m.recordsIndexed),
			"batch_retries":   atomic.LoadUint64(&m.batchRetries),
			"errors":          atomic.LoadUint64(&m.ingestErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *AssistantMetrics) Reset() {
	atomic.StoreUint64(&m.queriesTotal, 0)
	atomic.StoreUint64(&m.queriesCacheHits, 0)
	atomic.StoreUint64(&m.queriesCacheMisses, 0)
	atomic.StoreUint64(&m.queriesErrors, 0)
	atomic.StoreUint64(&m.intentParses, 0)
	atomic.StoreUint64(&m.intentParseErrors, 0)
	atomic.StoreUint64(&m.searchTotal, 0)
	atomic.StoreUint64(&m.searchErrors, 0)
	atomic.StoreUint64(&m.hydrationHits, 0)
	atomic.StoreUint64(&m.hydrationMisses, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.llmTokensPrompt, 0)
	atomic.StoreUint64(&m.llmTokensCompletion, 0)
	atomic.StoreUint64(&m.recordsIndexed, 0)
	atomic.StoreUint64(&m.batchRetries, 0)
	atomic.StoreUint64(&m.ingestErrors, 0)

	m.durationMu.Lock()
	m.searchDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
