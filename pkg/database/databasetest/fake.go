// Package databasetest provides an in-memory database.DB that records queries for repository tests.
package databasetest

import (
	"context"
	"database/sql"
	"sync"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/database"
)

// Query is one recorded statement.
type Query struct {
	SQL  string
	Args []any
}

// FakeDB answers Get and Select through the configured funcs. A nil func returns sql.ErrNoRows for
// Get and nothing for Select.
type FakeDB struct {
	mu      sync.Mutex
	Queries []Query

	OnGet    func(dest any, query string, args []any) error
	OnSelect func(dest any, query string, args []any) error
	OnExec   func(query string, args []any) error
	PingErr  error
}

var _ database.DB = (*FakeDB)(nil)

func (f *FakeDB) record(query string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, Query{SQL: query, Args: args})
}

// Last returns the most recent statement.
func (f *FakeDB) Last() Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Queries) == 0 {
		return Query{}
	}
	return f.Queries[len(f.Queries)-1]
}

func (f *FakeDB) Close() error { return nil }

func (f *FakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.record(query, args)
	if f.OnExec != nil {
		return nil, f.OnExec(query, args)
	}
	return nil, nil
}

func (f *FakeDB) GetContext(_ context.Context, dest any, query string, args ...any) error {
	f.record(query, args)
	if f.OnGet == nil {
		return sql.ErrNoRows
	}
	return f.OnGet(dest, query, args)
}

func (f *FakeDB) PingContext(context.Context) error { return f.PingErr }

func (f *FakeDB) SelectContext(_ context.Context, dest any, query string, args ...any) error {
	f.record(query, args)
	if f.OnSelect == nil {
		return nil
	}
	return f.OnSelect(dest, query, args)
}

func (f *FakeDB) SQLDB() *sql.DB { return nil }
