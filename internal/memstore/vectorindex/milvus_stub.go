//go:build windows || !cgo

package vectorindex

import (
	"context"
	"errors"

	"github.com/memengine/core/internal/core"
)

// MilvusConfig mirrors the real config's shape so callers can compile
// unconditionally; NewMilvus always fails on this build.
type MilvusConfig struct {
	Address        string
	CollectionName string
	Dimension      int
	EfConstruction int
	M              int
	Ef             int
}

// DefaultMilvusConfig returns the same defaults as the cgo build; NewMilvus
// still fails on this build.
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{Address: "localhost:19530", CollectionName: "memengine_embeddings", Dimension: 384, EfConstruction: 256, M: 16, Ef: 64}
}

var errMilvusUnsupported = errors.New("vectorindex: milvus backend requires cgo and is not supported on windows")

// Milvus is an unusable placeholder on this build.
type Milvus struct{}

// NewMilvus always fails on this build; the milvus-sdk-go/v2 grpc client
// requires cgo transitively through its dependency closure.
func NewMilvus(context.Context, MilvusConfig) (*Milvus, error) {
	return nil, errMilvusUnsupported
}

func (m *Milvus) Upsert(context.Context, string, core.ID, []float32) error { return errMilvusUnsupported }
func (m *Milvus) Delete(context.Context, string, core.ID) error            { return errMilvusUnsupported }
func (m *Milvus) Search(context.Context, string, []float32, int) ([]Match, error) {
	return nil, errMilvusUnsupported
}
func (m *Milvus) Close() error { return nil }
