package conn

import (
	"context"

	"github.com/pgwire-go/pgwire/pkg/params"
	"github.com/pgwire-go/pgwire/pkg/wire"
)

// Result is the outcome of Query: the decoded rows plus their column
// metadata, or the affected-row count for statements that report only a
// count.
type Result struct {
	Fields       []wire.FieldDescriptor
	Rows         [][]any
	AffectedRows int64
	Command      string
}

// Query represents one statement in flight: enqueued on a Connection (or,
// inside a transaction block, on the Tx's own queue), executed by the FSM,
// and resolved exactly once via resultCh.
type Query struct {
	sql                  string
	bindings             map[string]any
	onlyAffectedRowCount bool
	allowReuse           bool
	tx                   *Tx

	resultCh chan queryOutcome

	// Working state, touched only by the connection's run goroutine
	// while this query is Busy.
	fields       []wire.FieldDescriptor
	rows         [][]any
	affected     int64
	command      string
	returningErr error

	// Extended-path bookkeeping.
	rewrittenSQL         string
	extendedValues       []params.ExtendedParam
	pendingStatementName string // set when this query sent its own Parse+Describe
}

type queryOutcome struct {
	result *Result
	err    error
}

func newQuery(sql string, bindings map[string]any, onlyAffectedRowCount, allowReuse bool) *Query {
	return &Query{
		sql:                  sql,
		bindings:             bindings,
		onlyAffectedRowCount: onlyAffectedRowCount,
		allowReuse:           allowReuse,
		resultCh:             make(chan queryOutcome, 1),
	}
}

func (q *Query) succeed() {
	q.resultCh <- queryOutcome{result: &Result{
		Fields:       q.fields,
		Rows:         q.rows,
		AffectedRows: q.affected,
		Command:      q.command,
	}}
}

func (q *Query) fail(err error) {
	q.resultCh <- queryOutcome{err: err}
}

func (q *Query) wait(ctx context.Context) (*Result, error) {
	select {
	case out := <-q.resultCh:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Query) declaredTypes() []wire.PgType {
	types := make([]wire.PgType, len(q.extendedValues))
	for i, v := range q.extendedValues {
		types[i] = v.Type
	}
	return types
}
