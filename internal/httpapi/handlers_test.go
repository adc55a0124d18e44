package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomayi-ant/smart-agent-go/internal/orchestrator"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

func newTestServer(t *testing.T, kg *fakeKGExecutor) (*Server, pgxmock.PgxPoolIface) {
	t.Helper()
	threads, mock := newMockThreadStore(t)
	var kgExecutor orchestrator.KGExecutor
	if kg != nil {
		kgExecutor = kg
	}
	s := NewServer(testConfig(), nil, nil, threads, nil, kgExecutor, nil)
	return s, mock
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleCreateThreadRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/threads", nil)
	rec := httptest.NewRecorder()

	s.handleCreateThread(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleCreateThreadSucceedsWithToken(t *testing.T) {
	s, mock := newTestServer(t, nil)
	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	mock.ExpectExec(regexp.QuoteMeta("insert into threads(id, user_id)")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	req := httptest.NewRequest(http.MethodPost, "/api/threads", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1"))
	ctx := context.WithValue(req.Context(), userIDContextKey, "user-1")
	rec := httptest.NewRecorder()

	s.handleCreateThread(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["thread_id"])
}

func TestHandleGetMessagesReturnsOwnerScopedRows(t *testing.T) {
	s, mock := newTestServer(t, nil)
	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	rows := pgxmock.NewRows([]string{"id", "role", "content", "created_at"}).
		AddRow(int64(1), "user", []byte(`{"text":"hi"}`), now)
	mock.ExpectQuery(regexp.QuoteMeta("select tm.id, tm.role, tm.content, tm.created_at")).
		WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/threads/t1/messages", nil)
	req.SetPathValue("id", "t1")
	ctx := context.WithValue(req.Context(), userIDContextKey, "user-1")
	rec := httptest.NewRecorder()

	s.handleGetMessages(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hi")
}

func TestHandleDeleteThreadReturnsNotFoundOnOwnerMismatch(t *testing.T) {
	s, mock := newTestServer(t, nil)
	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("attacker").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	mock.ExpectExec(regexp.QuoteMeta("delete from threads")).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	req := httptest.NewRequest(http.MethodDelete, "/api/threads/t1", nil)
	req.SetPathValue("id", "t1")
	ctx := context.WithValue(req.Context(), userIDContextKey, "attacker")
	rec := httptest.NewRecorder()

	s.handleDeleteThread(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleApproveToolShortCircuitsOnReject(t *testing.T) {
	s, mock := newTestServer(t, &fakeKGExecutor{})
	mock.ExpectQuery(regexp.QuoteMeta("select user_id from threads where id = $1")).
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(ptrString("user-1")))
	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("insert into threads(id, user_id)")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("insert into thread_messages")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("update threads set updated_at = now()")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	body, _ := json.Marshal(approveToolRequest{ToolName: "graph.write.entity", Approve: false})
	req := httptest.NewRequest(http.MethodPost, "/api/threads/t1/tools/approval", bytes.NewReader(body))
	req.SetPathValue("id", "t1")
	ctx := context.WithValue(req.Context(), userIDContextKey, "user-1")
	rec := httptest.NewRecorder()

	s.handleApproveTool(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestHandleApproveToolExecutesAndPersistsResultOnApprove(t *testing.T) {
	kg := &fakeKGExecutor{results: []state.Evidence{{Text: "entity created", Source: state.SourceKG}}}
	s, mock := newTestServer(t, kg)
	mock.ExpectQuery(regexp.QuoteMeta("select user_id from threads where id = $1")).
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(ptrString("user-1")))
	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("insert into threads(id, user_id)")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("insert into thread_messages")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("update threads set updated_at = now()")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("insert into threads(id, user_id)")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("insert into thread_messages")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("update threads set updated_at = now()")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	body, _ := json.Marshal(approveToolRequest{ToolName: "graph.write.entity", Approve: true})
	req := httptest.NewRequest(http.MethodPost, "/api/threads/t1/tools/approval", bytes.NewReader(body))
	req.SetPathValue("id", "t1")
	ctx := context.WithValue(req.Context(), userIDContextKey, "user-1")
	rec := httptest.NewRecorder()

	s.handleApproveTool(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "entity created")
}

func TestHandleApproveToolReturns404WhenNotOwned(t *testing.T) {
	s, mock := newTestServer(t, nil)
	mock.ExpectQuery(regexp.QuoteMeta("select user_id from threads where id = $1")).
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(ptrString("someone-else")))

	body, _ := json.Marshal(approveToolRequest{ToolName: "graph.write.entity", Approve: true})
	req := httptest.NewRequest(http.MethodPost, "/api/threads/t1/tools/approval", bytes.NewReader(body))
	req.SetPathValue("id", "t1")
	ctx := context.WithValue(req.Context(), userIDContextKey, "user-1")
	rec := httptest.NewRecorder()

	s.handleApproveTool(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func ptrString(s string) *string { return &s }
