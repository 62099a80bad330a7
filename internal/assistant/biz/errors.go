package biz

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery 查询为空或仅包含空白。
var ErrEmptyQuery = errors.New("query is empty")

// IntentParseError 表示 LLM 意图解析失败（输出不是合法 JSON 或缺少必需字段）。
// 该错误不可重试，应映射为客户端错误。
type IntentParseError struct {
	// Raw LLM 的原始输出，便于排查。
	Raw string
	Err error
}

func (e *IntentParseError) Error() string {
	return fmt.Sprintf("intent parse failed: %v", e.Err)
}

func (e *IntentParseError) Unwrap() error {
	return e.Err
}

// TransientError 表示下游依赖（嵌入服务、向量索引、LLM）的临时故障，
// 调用方可以重试。
type TransientError struct {
	// Op 发生故障的操作名。
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsIntentParseError 判断错误链中是否包含意图解析错误。
func IsIntentParseError(err error) bool {
	var pe *IntentParseError
	return errors.As(err, &pe)
}

// IsTransientError 判断错误链中是否包含临时故障。
func IsTransientError(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
