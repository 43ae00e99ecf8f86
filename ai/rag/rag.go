// Package rag implements the AI Capability's vector-retrieval connection:
// connect(dsn), register(transformer), embed(table, data), query(table,
// data, options). Collection access is wrapped behind a
// small interface so tests substitute a fake instead of dialing Mongo,
// wrapping go.mongodb.org/mongo-driver/v2, the version this module depends
// on.
package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hayride-dev/hayride/herr"
)

// Embedder turns raw input data into a vector, standing in for the
// configured embedding model (the concrete model backend lives in
// ai/backend and ai/providers; RAG only needs the vector it produces).
type Embedder interface {
	Embed(ctx context.Context, model, data string) ([]float32, error)
}

// Transformer is the registration required before embed/query can
// operate on a table.
type Transformer struct {
	Embedding    string // e.g. "Sentence"
	Model        string
	DataColumn   string
	VectorColumn string
	IndexName    string
}

// Options are the recognized query options: limit (decimal integer,
// default 1); unknown options are ignored and are not logged.
type Options struct {
	Limit int64
}

// ParseOptions decodes a string-keyed option map, defaulting Limit to 1 and
// silently ignoring unrecognized keys.
func ParseOptions(raw map[string]string) Options {
	opts := Options{Limit: 1}
	if v, ok := raw["limit"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	return opts
}

// collection is the subset of *mongo.Collection the connection needs,
// narrowed for testability.
type collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error)
	Aggregate(ctx context.Context, pipeline any, opts ...options.Lister[options.AggregateOptions]) (cursor, error)
}

type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Close(ctx context.Context) error
	Err() error
}

// Connection is one RAG connection: a registry of per-table transformers
// plus the database handle they embed into and query against.
type Connection struct {
	db *mongodriver.Database

	mu           sync.RWMutex
	transformers map[string]Transformer
	embedder     Embedder
	collOf       func(table string) collection
}

// Connect dials dsn (a standard mongodb:// URI) and returns a Connection
// bound to database dbName.
func Connect(ctx context.Context, embedder Embedder, dsn, dbName string) (*Connection, error) {
	client, err := mongodriver.Connect(options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, herr.NewWithCause(herr.CapAI, herr.KindConnectionFailed, "", "mongo connect failed", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, herr.NewWithCause(herr.CapAI, herr.KindConnectionFailed, "", "mongo ping failed", err)
	}
	db := client.Database(dbName)
	c := &Connection{
		db:           db,
		transformers: map[string]Transformer{},
		embedder:     embedder,
	}
	c.collOf = func(table string) collection { return db.Collection(table) }
	return c, nil
}

// Register associates a Transformer with the table it will embed into.
func (c *Connection) Register(table string, t Transformer) error {
	if strings.TrimSpace(table) == "" {
		return herr.AI(herr.KindRegisterFailed, "", "table name is required")
	}
	if strings.TrimSpace(t.DataColumn) == "" || strings.TrimSpace(t.VectorColumn) == "" {
		return herr.AI(herr.KindRegisterFailed, "", "data_column and vector_column are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transformers[table] = t
	return nil
}

// Embed computes data's vector using table's registered transformer and
// inserts (or auto-creates and inserts into) table: the table is created
// with the configured embedding function if it does not exist, otherwise
// the vector is appended. Mongo collections are created implicitly on
// first insert, so this reduces to always inserting.
func (c *Connection) Embed(ctx context.Context, table, data string) error {
	t, ok := c.transformerFor(table)
	if !ok {
		return herr.AI(herr.KindMissingTable, "", fmt.Sprintf("table %q has no registered transformer", table))
	}

	vector, err := c.embedder.Embed(ctx, t.Model, data)
	if err != nil {
		return herr.NewWithCause(herr.CapAI, herr.KindEmbedFailed, "", "embedding failed", err)
	}

	doc := bson.M{
		t.DataColumn:   data,
		t.VectorColumn: vector,
	}
	if _, err := c.collOf(table).InsertOne(ctx, doc); err != nil {
		return herr.NewWithCause(herr.CapAI, herr.KindEmbedFailed, "", "insert failed", err)
	}
	return nil
}

// Query embeds data and runs a vector-similarity search against table,
// returning the matched rows' DataColumn text, most similar first.
func (c *Connection) Query(ctx context.Context, table, data string, opts Options) ([]string, error) {
	t, ok := c.transformerFor(table)
	if !ok {
		return nil, herr.AI(herr.KindMissingTable, "", fmt.Sprintf("table %q has no registered transformer", table))
	}

	vector, err := c.embedder.Embed(ctx, t.Model, data)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapAI, herr.KindEmbedFailed, "", "embedding failed", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}
	indexName := t.IndexName
	if indexName == "" {
		indexName = t.VectorColumn + "_index"
	}

	pipeline := bson.A{
		bson.M{"$vectorSearch": bson.M{
			"index":         indexName,
			"path":          t.VectorColumn,
			"queryVector":   vector,
			"numCandidates": limit * 10,
			"limit":         limit,
		}},
	}

	cur, err := c.collOf(table).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, herr.NewWithCause(herr.CapAI, herr.KindQueryFailed, "", "vector search failed", err)
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, herr.NewWithCause(herr.CapAI, herr.KindQueryFailed, "", "decode failed", err)
		}
		if text, ok := doc[t.DataColumn].(string); ok {
			out = append(out, text)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, herr.NewWithCause(herr.CapAI, herr.KindQueryFailed, "", "cursor error", err)
	}
	return out, nil
}

func (c *Connection) transformerFor(table string) (Transformer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.transformers[table]
	return t, ok
}
