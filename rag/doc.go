// Package rag defines the document/embedding/retrieval types and
// interfaces the Vector and Knowledge-Graph workers bind to --
// Embedder, VectorStore, Retriever, KnowledgeGraph -- plus the two
// concrete backends this deployment actually runs:
//
//	rag/store      in-memory vector store, deterministic mock embedder,
//	                in-memory and FalkorDB-backed knowledge graphs
//	rag/retriever   VectorRetriever, the only Retriever implementation
//	                internal/retrieval.VectorAdapter wraps
//
// # Quick start
//
//	embedder := store.NewMockEmbedder(256)
//	vectorStore := store.NewInMemoryVectorStore(embedder)
//	retriever := retriever.NewVectorRetriever(vectorStore, embedder, rag.RetrievalConfig{K: 4})
//	adapter := retrieval.NewVectorAdapter(retriever)
//
// # Knowledge graph
//
//	graph, err := store.NewKnowledgeGraph(cfg.KGDatabaseURL) // "memory://" or "falkordb://..."
//	adapter := retrieval.NewKGAdapter(graph)
//
// # Integration with the orchestrator
//
// internal/retrieval's VectorAdapter/KGAdapter wrap these types
// directly -- there is no separate RAG pipeline abstraction; a single
// Retriever.Retrieve or KnowledgeGraph call per worker invocation is
// the whole integration surface. Document ingestion (loading,
// chunking, embedding at write time) is an external collaborator with
// named interfaces only, per this deployment's scope.
package rag // import "github.com/xiaomayi-ant/smart-agent-go/rag"
