// Package ingest implements the offline corpus ingestion pipeline.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	sonicjson "github.com/kart-io/studyrag/pkg/utils/json"

	"github.com/kart-io/studyrag/internal/model"
)

// ErrBadRecord 标记单条语料解析失败，只跳过该条，不终止整个流。
var ErrBadRecord = errors.New("malformed corpus record")

// Reader 以流式方式读取语料 JSON 数组，内存占用与单条记录成正比，
// 与文件大小无关。逐 token 解码必须用标准库 json.Decoder。
type Reader struct {
	f   *os.File
	dec *json.Decoder
}

// NewReader 打开语料文件并消费数组起始 token。
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus file: %w", err)
	}

	dec := json.NewDecoder(f)
	tok, err := dec.Token()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		_ = f.Close()
		return nil, fmt.Errorf("corpus %s: expected JSON array, got %v", path, tok)
	}

	return &Reader{f: f, dec: dec}, nil
}

// Next 返回下一条记录。流结束返回 io.EOF；单条记录不合法返回
// 包装了 ErrBadRecord 的错误，调用方可以计数后继续。
func (r *Reader) Next() (*model.Record, error) {
	if !r.dec.More() {
		// 消费数组结束 token
		if _, err := r.dec.Token(); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read corpus tail: %w", err)
		}
		return nil, io.EOF
	}

	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode corpus item: %w", err)
	}

	var record model.Record
	if err := sonicjson.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if record.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrBadRecord)
	}
	return &record, nil
}

// Close 关闭底层文件。
func (r *Reader) Close() error {
	return r.f.Close()
}
