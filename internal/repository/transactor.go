package repository

import "context"

// Transactor runs fn inside a store transaction. The context passed to fn is
// scoped to the transaction and must be used for every repository call that
// should take part in it. fn may be invoked more than once when the store
// retries a transient conflict, so it must not have side effects outside the store.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
