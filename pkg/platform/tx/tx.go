// Package tx carries an in-flight unit of work through context.Context so
// downstream stores join it instead of opening their own.
package tx

import "context"

type ctxKey[T any] struct{}

// With stores a transaction handle of type T in ctx. A nil-like zero value is
// not stored.
func With[T comparable](ctx context.Context, t T) context.Context {
	var zero T
	if t == zero {
		return ctx
	}
	return context.WithValue(ctx, ctxKey[T]{}, t)
}

// From extracts the transaction handle of type T from ctx if present.
func From[T any](ctx context.Context) (T, bool) {
	t, ok := ctx.Value(ctxKey[T]{}).(T)
	return t, ok
}
