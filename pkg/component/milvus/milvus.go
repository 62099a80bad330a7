// Package milvus wraps the Milvus v2 SDK client for vector collections
// keyed by caller-assigned string IDs.
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/studyrag/pkg/options/milvus"
)

// Client wraps the Milvus SDK client.
// The underlying connection is established lazily on first use so that
// constructing a Client never blocks on the network.
type Client struct {
	opts *milvusopts.Options

	dialOnce sync.Once
	client   *milvusclient.Client
	dialErr  error
}

// New creates a new Milvus client. The connection is not dialed until the
// first operation.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}
	return &Client{opts: opts}, nil
}

// conn returns the underlying client, dialing on first call.
func (c *Client) conn(ctx context.Context) (*milvusclient.Client, error) {
	c.dialOnce.Do(func() {
		dialCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		cli, err := milvusclient.New(dialCtx, &milvusclient.ClientConfig{
			Address:  c.opts.Address,
			Username: c.opts.Username,
			Password: c.opts.Password,
			DBName:   c.opts.Database,
		})
		if err != nil {
			c.dialErr = fmt.Errorf("failed to connect to milvus: %w", err)
			return
		}
		c.client = cli
	})
	return c.client, c.dialErr
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close(ctx)
}

// CollectionSchema defines the schema for a vector collection.
// The primary key is a caller-assigned VarChar "id" field so that
// re-ingesting the same record overwrites the previous entry.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	MetaFields  []MetaField
}

// MetaField defines a metadata field in the collection.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // For VARCHAR type
}

// EnsureCollection creates the collection if it does not exist yet,
// builds a cosine IVF_FLAT index on the vector field, and loads the
// collection into memory.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	cli, err := c.conn(ctx)
	if err != nil {
		return err
	}

	exists, err := cli.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return c.loadCollection(ctx, schema.Name)
	}

	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(false)

	// 主键由调用方指定，支持按 ID 覆盖写入
	collSchema.WithField(
		entity.NewField().
			WithName("id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(256).
			WithIsPrimaryKey(true),
	)

	collSchema.WithField(
		entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)

	for _, f := range schema.MetaFields {
		field := entity.NewField().
			WithName(f.Name).
			WithDataType(f.DataType)
		if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
			field.WithMaxLength(int64(f.MaxLen))
		}
		collSchema.WithField(field)
	}

	if err := cli.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// 余弦相似度索引，分数越高越相似
	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := cli.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, "embedding", idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return c.loadCollection(ctx, schema.Name)
}

func (c *Client) loadCollection(ctx context.Context, name string) error {
	cli, err := c.conn(ctx)
	if err != nil {
		return err
	}
	loadTask, err := cli.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// UpsertData represents data to be upserted into a collection.
// All slices must have the same length; Metadata values are keyed by
// field name and must be []string or []int64 columns.
type UpsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]any
}

// Upsert writes vectors and metadata into the collection, overwriting
// entries that share a primary key.
func (c *Client) Upsert(ctx context.Context, collectionName string, data *UpsertData) error {
	cli, err := c.conn(ctx)
	if err != nil {
		return err
	}
	if len(data.IDs) == 0 {
		return nil
	}
	if len(data.IDs) != len(data.Embeddings) {
		return fmt.Errorf("id count %d does not match embedding count %d", len(data.IDs), len(data.Embeddings))
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns, column.NewColumnVarChar("id", data.IDs))
	columns = append(columns, column.NewColumnFloatVector("embedding", len(data.Embeddings[0]), data.Embeddings))

	for name, values := range data.Metadata {
		if len(values) != len(data.IDs) {
			return fmt.Errorf("metadata field %s has %d values, want %d", name, len(values), len(data.IDs))
		}
		switch values[0].(type) {
		case string:
			strVals := make([]string, len(values))
			for i, val := range values {
				strVals[i] = val.(string)
			}
			columns = append(columns, column.NewColumnVarChar(name, strVals))
		case int64:
			intVals := make([]int64, len(values))
			for i, val := range values {
				intVals[i] = val.(int64)
			}
			columns = append(columns, column.NewColumnInt64(name, intVals))
		default:
			return fmt.Errorf("unsupported metadata type: %T for field %s", values[0], name)
		}
	}

	if _, err := cli.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}

	// Flush 保证批量写入后立即可见
	flushTask, err := cli.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Search performs a vector similarity search. filterExpr is a Milvus
// boolean expression; an empty string searches the whole collection.
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, topK int, filterExpr string, outputFields []string) ([]SearchResult, error) {
	cli, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	searchVectors := []entity.Vector{entity.FloatVector(vector)}

	opt := milvusclient.NewSearchOption(collectionName, topK, searchVectors).
		WithANNSField("embedding").
		WithSearchParam("nprobe", "16").
		WithOutputFields(outputFields...)
	if filterExpr != "" {
		opt = opt.WithFilter(filterExpr)
	}

	results, err := cli.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	searchResults := make([]SearchResult, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		result := SearchResult{
			Score:    results[0].Scores[i],
			Metadata: make(map[string]any),
		}

		if idCol, ok := results[0].IDs.(*column.ColumnVarChar); ok {
			result.ID = idCol.Data()[i]
		}

		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				result.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				result.Metadata[col.Name()] = col.Data()[i]
			}
		}

		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	cli, err := c.conn(ctx)
	if err != nil {
		return err
	}
	if err := cli.DropCollection(ctx, milvusclient.NewDropCollectionOption(collectionName)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// GetCollectionStats returns the number of entities in a collection.
func (c *Client) GetCollectionStats(ctx context.Context, collectionName string) (int64, error) {
	cli, err := c.conn(ctx)
	if err != nil {
		return 0, err
	}
	stats, err := cli.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
