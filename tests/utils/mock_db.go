package utils

import (
	"context"
	"strings"

	"github.com/trufnetwork/kwil-db/node/types/sql"
)

// MockDB implements sql.DB for testing store and handler code without a
// node. Behavior is injected per test through the function fields.
type MockDB struct {
	ExecuteFn func(ctx context.Context, stmt string, args ...any) (*sql.ResultSet, error)
	BeginTxFn func(ctx context.Context) (sql.Tx, error)
}

func (m *MockDB) Execute(ctx context.Context, stmt string, args ...any) (*sql.ResultSet, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, stmt, args...)
	}
	return &sql.ResultSet{}, nil
}

func (m *MockDB) BeginTx(ctx context.Context) (sql.Tx, error) {
	if m.BeginTxFn != nil {
		return m.BeginTxFn(ctx)
	}
	return &MockTx{}, nil
}

// MockTx implements sql.Tx for testing.
type MockTx struct {
	ExecuteFn  func(ctx context.Context, stmt string, args ...any) (*sql.ResultSet, error)
	BeginTxFn  func(ctx context.Context) (sql.Tx, error)
	RollbackFn func(ctx context.Context) error
	CommitFn   func(ctx context.Context) error
}

func (m *MockTx) Execute(ctx context.Context, stmt string, args ...any) (*sql.ResultSet, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, stmt, args...)
	}
	return &sql.ResultSet{}, nil
}

func (m *MockTx) BeginTx(ctx context.Context) (sql.Tx, error) {
	if m.BeginTxFn != nil {
		return m.BeginTxFn(ctx)
	}
	return &MockTx{}, nil
}

func (m *MockTx) Rollback(ctx context.Context) error {
	if m.RollbackFn != nil {
		return m.RollbackFn(ctx)
	}
	return nil
}

func (m *MockTx) Commit(ctx context.Context) error {
	if m.CommitFn != nil {
		return m.CommitFn(ctx)
	}
	return nil
}

// Rows builds a ResultSet from raw rows.
func Rows(rows ...[]any) *sql.ResultSet {
	return &sql.ResultSet{Rows: rows}
}

// TableCall is one recorded Execute invocation.
type TableCall struct {
	Stmt string
	Args []any
}

// TableDB is a MockDB that dispatches on statement substrings and records
// every call, so tests can assert both results and the SQL traffic an
// operation produced. Register responses with On; unmatched statements
// return an empty ResultSet.
type TableDB struct {
	MockDB
	Calls     []TableCall
	responses []tableResponse
}

type tableResponse struct {
	substr string
	result *sql.ResultSet
	err    error
}

// NewTableDB builds a recording DB.
func NewTableDB() *TableDB {
	t := &TableDB{}
	t.ExecuteFn = func(_ context.Context, stmt string, args ...any) (*sql.ResultSet, error) {
		t.Calls = append(t.Calls, TableCall{Stmt: stmt, Args: args})
		for _, r := range t.responses {
			if strings.Contains(stmt, r.substr) {
				if r.err != nil {
					return nil, r.err
				}
				return r.result, nil
			}
		}
		return &sql.ResultSet{}, nil
	}
	return t
}

// On routes statements containing substr to the given result. Earlier
// registrations win.
func (t *TableDB) On(substr string, result *sql.ResultSet) *TableDB {
	t.responses = append(t.responses, tableResponse{substr: substr, result: result})
	return t
}

// OnErr routes statements containing substr to an error.
func (t *TableDB) OnErr(substr string, err error) *TableDB {
	t.responses = append(t.responses, tableResponse{substr: substr, err: err})
	return t
}

// StmtsContaining returns the recorded statements matching a substring.
func (t *TableDB) StmtsContaining(substr string) []TableCall {
	var out []TableCall
	for _, c := range t.Calls {
		if strings.Contains(c.Stmt, substr) {
			out = append(out, c)
		}
	}
	return out
}
