package biz

// EventName 查询流水线对外发布的阶段事件名。
type EventName string

const (
	// EventParsing 开始意图解析。
	EventParsing EventName = "parsing"
	// EventSearching 开始向量检索。
	EventSearching EventName = "searching"
	// EventFetching 开始内容水合。
	EventFetching EventName = "fetching"
	// EventGenerating 开始回答生成。
	EventGenerating EventName = "generating"
	// EventPrePrompt 解析成功后带外下发 pre-prompt。
	EventPrePrompt EventName = "pre-prompt"
	// EventComplete 流水线完成，携带完整响应。
	EventComplete EventName = "complete"
	// EventError 任意阶段失败，携带错误信息。
	EventError EventName = "error"
)

// Event 查询流水线的一个阶段事件。
type Event struct {
	Name EventName `json:"event"`
	// Data complete 事件为 *model.QueryResponse，pre-prompt 事件为
	// string，error 事件为错误消息，其余阶段为 nil。
	Data any `json:"data,omitempty"`
}

// EmitFunc 事件发布回调。同步查询传入空实现即可。
type EmitFunc func(Event)
