package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xiaomayi-ant/smart-agent-go/internal/llm"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/rag"
	"github.com/xiaomayi-ant/smart-agent-go/rag/retriever"
	"github.com/xiaomayi-ant/smart-agent-go/rag/store"
)

func seedVectorStore(t *testing.T) rag.VectorStore {
	t.Helper()
	embedder := store.NewMockEmbedder(8)
	vs := store.NewInMemoryVectorStore(embedder)
	require.NoError(t, vs.Add(context.Background(), []rag.Document{
		{ID: "d1", Content: "refund policy covers thirty days", Metadata: map[string]any{"topic": "refunds"}},
		{ID: "d2", Content: "shipping takes five business days", Metadata: map[string]any{"topic": "shipping"}},
	}))
	return vs
}

func TestVectorAdapterSearchReturnsEvidence(t *testing.T) {
	embedder := store.NewMockEmbedder(8)
	vs := seedVectorStore(t)
	r := retriever.NewVectorRetriever(vs, embedder, rag.RetrievalConfig{K: 2})
	adapter := NewVectorAdapter(r)

	evidence, err := adapter.Search(context.Background(), "refund policy", nil, 2)
	require.NoError(t, err)
	require.NotEmpty(t, evidence)
	for _, e := range evidence {
		assert.Equal(t, state.SourceVector, e.Source)
		assert.NotEmpty(t, e.Text)
	}
}

type fakeRewriteModel struct {
	response string
	err      error
}

func (m *fakeRewriteModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *fakeRewriteModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.response, nil
}

func TestLLMQueryRewriterReturnsModelOutput(t *testing.T) {
	model := &fakeRewriteModel{response: "thirty day refund window"}
	client := llm.NewFromModel(model)
	rewriter := NewLLMQueryRewriter(client)

	rewritten, err := rewriter.Rewrite(context.Background(), "refund policy")
	require.NoError(t, err)
	assert.Equal(t, "thirty day refund window", rewritten)
}

func TestLLMQueryRewriterPropagatesError(t *testing.T) {
	model := &fakeRewriteModel{err: errors.New("provider down")}
	client := llm.NewFromModel(model)
	rewriter := NewLLMQueryRewriter(client)

	_, err := rewriter.Rewrite(context.Background(), "refund policy")
	assert.Error(t, err)
}
