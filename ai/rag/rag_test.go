package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, model, data string) ([]float32, error) {
	return f.vector, f.err
}

type fakeCollection struct {
	inserted []bson.M
	docs     []bson.M
}

func (f *fakeCollection) InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	f.inserted = append(f.inserted, document.(bson.M))
	return &mongodriver.InsertOneResult{}, nil
}

func (f *fakeCollection) Aggregate(ctx context.Context, pipeline any, opts ...options.Lister[options.AggregateOptions]) (cursor, error) {
	return &fakeCursor{docs: f.docs}, nil
}

type fakeCursor struct {
	docs []bson.M
	pos  int
}

func (c *fakeCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	out := val.(*bson.M)
	*out = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Close(ctx context.Context) error { return nil }
func (c *fakeCursor) Err() error                      { return nil }

func newTestConnection(embedder Embedder, coll *fakeCollection) *Connection {
	return &Connection{
		transformers: map[string]Transformer{},
		embedder:     embedder,
		collOf:       func(table string) collection { return coll },
	}
}

func TestEmbedInsertsDataAndVector(t *testing.T) {
	coll := &fakeCollection{}
	conn := newTestConnection(&fakeEmbedder{vector: []float32{0.1, 0.2}}, coll)
	require.NoError(t, conn.Register("docs", Transformer{
		Embedding: "Sentence", Model: "demo", DataColumn: "text", VectorColumn: "vec",
	}))

	err := conn.Embed(context.Background(), "docs", "hello world")
	require.NoError(t, err)
	require.Len(t, coll.inserted, 1)
	assert.Equal(t, "hello world", coll.inserted[0]["text"])
}

func TestEmbedWithoutTransformerFails(t *testing.T) {
	conn := newTestConnection(&fakeEmbedder{}, &fakeCollection{})
	err := conn.Embed(context.Background(), "docs", "data")
	assert.Error(t, err)
}

func TestQueryReturnsMatchedDataColumn(t *testing.T) {
	coll := &fakeCollection{docs: []bson.M{
		{"text": "closest match"},
		{"text": "second match"},
	}}
	conn := newTestConnection(&fakeEmbedder{vector: []float32{1, 0}}, coll)
	require.NoError(t, conn.Register("docs", Transformer{DataColumn: "text", VectorColumn: "vec"}))

	out, err := conn.Query(context.Background(), "docs", "query text", Options{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"closest match", "second match"}, out)
}

func TestParseOptionsDefaultsLimitAndIgnoresUnknown(t *testing.T) {
	opts := ParseOptions(map[string]string{"bogus": "x"})
	assert.EqualValues(t, 1, opts.Limit)

	opts = ParseOptions(map[string]string{"limit": "5"})
	assert.EqualValues(t, 5, opts.Limit)
}

func TestRegisterRequiresColumns(t *testing.T) {
	conn := newTestConnection(&fakeEmbedder{}, &fakeCollection{})
	err := conn.Register("docs", Transformer{})
	assert.Error(t, err)
}
