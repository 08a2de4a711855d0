package core

import "context"

// InputAdapter loads input records for pipeline processing.
type InputAdapter[In any] interface {
	Load(ctx context.Context) ([]In, error)
}

// OutputAdapter persists output records produced by pipeline processing.
//
// Store replaces the whole output with rows: every call is a full rewrite, so
// a reader never observes a partially appended table.
type OutputAdapter[Out any] interface {
	Store(ctx context.Context, rows []Out) error
}

// StoreFunc adapts a function to the OutputAdapter interface.
type StoreFunc[Out any] func(ctx context.Context, rows []Out) error

func (f StoreFunc[Out]) Store(ctx context.Context, rows []Out) error {
	return f(ctx, rows)
}
