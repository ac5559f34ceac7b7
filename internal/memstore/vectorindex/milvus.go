//go:build !windows && cgo

package vectorindex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/memengine/core/internal/core"
)

// MilvusConfig configures the external/federated vector index backend,
// grounded on the same collection-per-concern layout as the pack's Milvus
// memory store.
type MilvusConfig struct {
	Address        string
	CollectionName string
	Dimension      int
	EfConstruction int
	M              int
	Ef             int
}

// DefaultMilvusConfig returns sensible defaults matching a small HNSW graph.
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "memengine_embeddings",
		Dimension:      384,
		EfConstruction: 256,
		M:              16,
		Ef:             64,
	}
}

// Milvus is a VectorIndex backed by an external Milvus cluster, used when
// the deployment needs a federated or horizontally-scaled ANN index rather
// than the in-process default.
type Milvus struct {
	client client.Client
	cfg    MilvusConfig
	mu     sync.Mutex
}

// NewMilvus connects to Milvus and ensures the collection and HNSW index
// exist, creating both on first use.
func NewMilvus(ctx context.Context, cfg MilvusConfig) (*Milvus, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c, err := client.NewGrpcClient(dialCtx, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("connect to milvus at %s: %w", cfg.Address, err)
	}

	m := &Milvus{client: c, cfg: cfg}
	if err := m.ensureCollection(dialCtx); err != nil {
		c.Close()
		return nil, err
	}
	return m, nil
}

func (m *Milvus) ensureCollection(ctx context.Context) error {
	exists, err := m.client.HasCollection(ctx, m.cfg.CollectionName)
	if err != nil {
		return fmt.Errorf("check milvus collection: %w", err)
	}
	if exists {
		return m.client.LoadCollection(ctx, m.cfg.CollectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: m.cfg.CollectionName,
		Description:    "memengine dense embeddings, partitioned by user_id at query time",
		Fields: []*entity.Field{
			{Name: "id", DataType: entity.FieldTypeVarChar, PrimaryKey: true, AutoID: false, TypeParams: map[string]string{"max_length": "64"}},
			{Name: "user_id", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "128"}},
			{Name: "embedding", DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.cfg.Dimension)}},
		},
	}
	if err := m.client.CreateCollection(ctx, schema, 2); err != nil {
		return fmt.Errorf("create milvus collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.cfg.M, m.cfg.EfConstruction)
	if err != nil {
		return fmt.Errorf("build hnsw index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.cfg.CollectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("create milvus index: %w", err)
	}
	return m.client.LoadCollection(ctx, m.cfg.CollectionName, false)
}

func (m *Milvus) Upsert(ctx context.Context, userID string, id core.ID, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.client.Delete(ctx, m.cfg.CollectionName, "", fmt.Sprintf("id == \"%s\"", id)); err != nil {
		return fmt.Errorf("milvus delete-before-insert: %w", err)
	}
	_, err := m.client.Insert(ctx, m.cfg.CollectionName, "",
		entity.NewColumnVarChar("id", []string{string(id)}),
		entity.NewColumnVarChar("user_id", []string{userID}),
		entity.NewColumnFloatVector("embedding", m.cfg.Dimension, [][]float32{vec}),
	)
	if err != nil {
		return fmt.Errorf("milvus insert: %w", err)
	}
	return m.client.Flush(ctx, m.cfg.CollectionName, false)
}

func (m *Milvus) Delete(ctx context.Context, _ string, id core.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.client.Delete(ctx, m.cfg.CollectionName, "", fmt.Sprintf("id == \"%s\"", id)); err != nil {
		return fmt.Errorf("milvus delete: %w", err)
	}
	return nil
}

func (m *Milvus) Search(ctx context.Context, userID string, query []float32, topN int) ([]Match, error) {
	searchParam, err := entity.NewIndexHNSWSearchParam(m.cfg.Ef)
	if err != nil {
		return nil, fmt.Errorf("build hnsw search params: %w", err)
	}

	filter := fmt.Sprintf("user_id == \"%s\"", userID)
	result, err := m.client.Search(ctx, m.cfg.CollectionName, []string{}, filter,
		[]string{"id"}, []entity.Vector{entity.FloatVector(query)}, "embedding",
		entity.COSINE, topN, searchParam)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	var out []Match
	res := result[0]
	for i := 0; i < res.ResultCount; i++ {
		var id string
		for _, f := range res.Fields {
			if f.Name() == "id" {
				col := f.(*entity.ColumnVarChar)
				id, _ = col.ValueByIdx(i)
			}
		}
		// COSINE metric in milvus search results is a similarity in [-1,1];
		// convert to the Distance convention used by the rest of the index.
		out = append(out, Match{ID: core.ID(id), Distance: 1 - res.Scores[i]})
	}
	return out, nil
}

func (m *Milvus) Close() error {
	return m.client.Close()
}
