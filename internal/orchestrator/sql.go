package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xiaomayi-ant/smart-agent-go/internal/engine"
	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
	"github.com/xiaomayi-ant/smart-agent-go/log"
)

// WorkerDeadline is the hard per-worker timeout spec §4.4 requires:
// on expiry the worker must still report waiting:-1 with an empty
// result, never leave the barrier hanging.
const WorkerDeadline = 30 * time.Second

// DBPool is the subset of pgxpool.Pool the SQL worker needs, matching
// the same interface shape used in checkpoint/postgres and
// threadstore so a single *pgxpool.Pool satisfies all three.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// userScopedTables lists tables whose rows carry a user_id column that
// every query against them must filter by, so one caller's query
// cannot read another user's rows (spec §4.4: "injects user_id into
// the predicate set when the target table requires it").
var userScopedTables = map[string]bool{
	"orders":  true,
	"threads": true,
}

// SQLExecutor runs a structured query and returns evidence rows. The
// only production implementation is PgxSQLExecutor; tests supply a
// fake.
type SQLExecutor interface {
	Query(ctx context.Context, table string, fields []string, conditions map[string]any, orderBy string, limit, offset int, userID string) ([]state.Evidence, error)
}

// PgxSQLExecutor builds a parameterized SELECT from structured
// arguments -- never raw SQL text, per spec §4.4's "forbidden: raw SQL
// strings" -- and scans each row into an Evidence record.
type PgxSQLExecutor struct {
	pool DBPool
}

func NewPgxSQLExecutor(pool DBPool) *PgxSQLExecutor {
	return &PgxSQLExecutor{pool: pool}
}

func (e *PgxSQLExecutor) Query(ctx context.Context, table string, fields []string, conditions map[string]any, orderBy string, limit, offset int, userID string) ([]state.Evidence, error) {
	if !isSafeIdentifier(table) {
		return nil, fmt.Errorf("orchestrator: unsafe table identifier %q", table)
	}
	if len(fields) == 0 {
		fields = []string{"*"}
	}
	for _, f := range fields {
		if f != "*" && !isSafeIdentifier(f) {
			return nil, fmt.Errorf("orchestrator: unsafe field identifier %q", f)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(fields, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	args := make([]any, 0, len(conditions)+2)
	where := make([]string, 0, len(conditions)+1)
	if userScopedTables[table] {
		where = append(where, "user_id = "+placeholder(len(args)+1))
		args = append(args, userID)
	}
	for col, val := range conditions {
		if !isSafeIdentifier(col) {
			return nil, fmt.Errorf("orchestrator: unsafe condition column %q", col)
		}
		where = append(where, col+" = "+placeholder(len(args)+1))
		args = append(args, val)
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if orderBy != "" && isSafeIdentifier(strings.TrimSuffix(strings.TrimSuffix(orderBy, " desc"), " asc")) {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	if limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(limit))
	}
	if offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(offset))
	}

	rows, err := e.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: sql query: %w", err)
	}
	defer rows.Close()

	var results []state.Evidence
	fieldDescs := rows.FieldDescriptions()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("orchestrator: sql scan: %w", err)
		}
		metadata := make(map[string]any, len(vals))
		for i, v := range vals {
			if i < len(fieldDescs) {
				metadata[string(fieldDescs[i].Name)] = v
			}
		}
		results = append(results, state.Evidence{
			Text:     rowText(metadata),
			Score:    1.0,
			Metadata: metadata,
			Source:   state.SourceSQL,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orchestrator: sql rows: %w", err)
	}
	return results, nil
}

func placeholder(n int) string { return "$" + strconv.Itoa(n) }

func isSafeIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if isLetter || r == '_' {
			continue
		}
		if isDigit && i > 0 {
			continue
		}
		return false
	}
	return true
}

func rowText(row map[string]any) string {
	parts := make([]string, 0, len(row))
	for k, v := range row {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

// NewSQLWorker returns the sql_worker node function. It reads the
// dispatched state.Step from the Send arg, chooses simple-form or
// structured-form parameters by parameter shape, and always reports
// waiting:-1 -- an execution error or timeout yields an empty,
// no-op evidence delta rather than leaving the barrier open (spec
// §4.4).
func NewSQLWorker(executor SQLExecutor, logger log.Logger) engine.NodeFunc {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return func(ctx context.Context, turn state.Turn) (state.Delta, error) {
		step, _ := engine.SendArg(ctx).(state.Step)

		ctx, cancel := context.WithTimeout(ctx, WorkerDeadline)
		defer cancel()

		results, err := runSQLStep(ctx, executor, step, turn.UserID)
		if err != nil {
			logger.Warn("sql_worker: %v", err)
			return state.Delta{
				SQLResults: state.Ptr(state.NoopEvidence()),
				Waiting:    state.Ptr(-1),
			}, nil
		}
		return state.Delta{
			SQLResults: state.Ptr(state.AppendEvidence(results...)),
			Waiting:    state.Ptr(-1),
		}, nil
	}
}

func runSQLStep(ctx context.Context, executor SQLExecutor, step state.Step, userID string) ([]state.Evidence, error) {
	args := step.Args
	if args == nil {
		return nil, fmt.Errorf("sql step has no args")
	}
	if draft, ok := args["query_draft"].(map[string]any); ok {
		args = draft
	}

	table, _ := args["table"].(string)
	if table == "" {
		return nil, fmt.Errorf("sql step missing table")
	}
	fields := toStringSlice(args["fields"])
	conditions, _ := args["conditions"].(map[string]any)
	orderBy, _ := args["order_by"].(string)
	limit := toInt(args["limit"])
	offset := toInt(args["offset"])

	return executor.Query(ctx, table, fields, conditions, orderBy, limit, offset, userID)
}

func toStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	default:
		return 0
	}
}
