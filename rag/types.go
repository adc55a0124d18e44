package rag

import (
	"context"
	"time"
)

// Document is the unit of content every loader, splitter, store, and
// retriever in this package exchanges.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentSearchResult pairs a Document with its similarity score from
// a vector or graph search.
type DocumentSearchResult struct {
	Document Document
	Score    float64
}

// RetrievalConfig tunes a single retrieval call.
type RetrievalConfig struct {
	K              int
	ScoreThreshold float64
	SearchType     string // "similarity", "mmr", "graph"
	IncludeScores  bool
	Filter         map[string]any
}

// Embedder turns text into vectors for storage and query-time search.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	GetDimension() int
}

// VectorStoreStats reports the current size of a VectorStore.
type VectorStoreStats struct {
	TotalDocuments int
	TotalVectors   int
	Dimension      int
	LastUpdated    time.Time
}

// VectorStore persists embedded documents and answers nearest-neighbor
// queries over them.
type VectorStore interface {
	Add(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query []float32, k int) ([]DocumentSearchResult, error)
	SearchWithFilter(ctx context.Context, query []float32, k int, filter map[string]any) ([]DocumentSearchResult, error)
	Delete(ctx context.Context, ids []string) error
	Update(ctx context.Context, docs []Document) error
	GetStats(ctx context.Context) (*VectorStoreStats, error)
	Close() error
}

// Retriever fetches the documents most relevant to a query, with or
// without an explicit RetrievalConfig.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
	RetrieveWithK(ctx context.Context, query string, k int) ([]Document, error)
	RetrieveWithConfig(ctx context.Context, query string, config *RetrievalConfig) ([]DocumentSearchResult, error)
}

// Entity is a node in a knowledge graph.
type Entity struct {
	ID         string
	Type       string
	Name       string
	Properties map[string]any
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	ID         string
	Source     string
	Target     string
	Type       string
	Weight     float64
	Confidence float64
	Properties map[string]any
	CreatedAt  time.Time
}

// GraphQuery describes a knowledge-graph lookup: either a type/filter
// scan (EntityTypes, Relationships, Filters, Limit) or a traversal from
// a single starting entity (StartEntity, EntityType, MaxDepth).
type GraphQuery struct {
	EntityTypes   []string
	EntityType    string
	Relationships []string
	StartEntity   string
	MaxDepth      int
	Filters       map[string]any
	Limit         int
}

// GraphQueryResult holds the entities, relationships, and traversal
// paths a GraphQuery matched.
type GraphQueryResult struct {
	Entities      []*Entity
	Relationships []*Relationship
	Paths         [][]*Entity
	Metadata      map[string]any
}

// KnowledgeGraph stores entities and relationships and answers graph
// queries and traversals over them.
type KnowledgeGraph interface {
	AddEntity(ctx context.Context, entity *Entity) error
	AddRelationship(ctx context.Context, rel *Relationship) error
	Query(ctx context.Context, query *GraphQuery) (*GraphQueryResult, error)
	GetEntity(ctx context.Context, id string) (*Entity, error)
	GetRelationship(ctx context.Context, id string) (*Relationship, error)
	GetRelatedEntities(ctx context.Context, entityID string, maxDepth int) ([]*Entity, error)
	DeleteEntity(ctx context.Context, id string) error
	DeleteRelationship(ctx context.Context, id string) error
	UpdateEntity(ctx context.Context, entity *Entity) error
	UpdateRelationship(ctx context.Context, rel *Relationship) error
	Close() error
}

