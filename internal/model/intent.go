package model

// ParsedIntent LLM 意图解析的结构化结果。
// 字段名与意图解析 JSON 契约保持一致。
type ParsedIntent struct {
	// Total 请求的结果数量，0 表示未指定。
	Total int `json:"total"`

	// UserQuery 改写后的检索查询。
	UserQuery string `json:"user_query"`

	// Type 目标记录类型（question/flashcard/general）。
	Type RecordType `json:"type"`

	// PrePrompt 生成答案时附加的用户侧提示。
	PrePrompt string `json:"pre-prompt"`

	// Context 上下文补充说明，可为空。
	Context string `json:"context"`

	// Subjects 识别出的学科（已对齐词表）。
	Subjects []string `json:"subjects,omitempty"`

	// Topics 识别出的主题（已对齐词表）。
	Topics []string `json:"topics,omitempty"`
}

// SearchHit 向量检索命中的一条结果。
type SearchHit struct {
	ID      string     `json:"id"`
	Score   float32    `json:"score"`
	Subject string     `json:"subject"`
	Topic   string     `json:"topic"`
	Type    RecordType `json:"type"`
}

// HydratedResult 水合后的检索结果。语料缺失时 Content 为 nil，
// 命中本身保留。
type HydratedResult struct {
	SearchHit
	Content *RecordContent `json:"content"`
}

// QueryMetadata 响应元信息。
type QueryMetadata struct {
	TotalResults int        `json:"totalResults"`
	QueryType    RecordType `json:"queryType"`
	Context      string     `json:"context,omitempty"`
}

// QueryResponse 同步查询的完整响应。
type QueryResponse struct {
	Parsed      *ParsedIntent    `json:"parsed"`
	Results     []HydratedResult `json:"results"`
	LLMResponse string           `json:"llmResponse"`
	Metadata    QueryMetadata    `json:"metadata"`
}

// Vocabulary 语料库的学科/主题词表及计数。
type Vocabulary struct {
	Subjects []string         `json:"subjects"`
	Topics   []string         `json:"topics"`
	Counts   VocabularyCounts `json:"counts"`
}

// VocabularyCounts 词表规模统计，即去重后的学科数与主题数。
type VocabularyCounts struct {
	Subjects int `json:"subjects"`
	Topics   int `json:"topics"`
}
