package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
)

type ToFirestoreFunc[T any] func(*T) map[string]interface{}
type FromFirestoreFunc[T any] func(map[string]interface{}) *T

type Collection[T any] struct {
	Ref           *firestore.CollectionRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.Doc(id),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

func (c *Collection[T]) NewDoc() *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.NewDoc(),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

// Query starts a typed query over the collection. Records carry their
// own "id" field in the document body, so decoded results keep their
// identity without a separate ID plumbing path.
func (c *Collection[T]) Query() *Query[T] {
	return &Query[T]{q: c.Ref.Query, from: c.FromFirestore}
}

type Query[T any] struct {
	q    firestore.Query
	from FromFirestoreFunc[T]
}

func (q *Query[T]) Where(path, op string, value interface{}) *Query[T] {
	return &Query[T]{q: q.q.Where(path, op, value), from: q.from}
}

func (q *Query[T]) OrderBy(path string, dir firestore.Direction) *Query[T] {
	return &Query[T]{q: q.q.OrderBy(path, dir), from: q.from}
}

func (q *Query[T]) Limit(n int) *Query[T] {
	return &Query[T]{q: q.q.Limit(n), from: q.from}
}

func (q *Query[T]) GetAll(ctx context.Context) ([]*T, error) {
	snaps, err := q.q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, q.from(snap.Data()))
	}
	return out, nil
}

// First returns the first matching document, or nil when the query is
// empty.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	results, err := q.Limit(1).GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

type DocumentRef[T any] struct {
	Ref           *firestore.DocumentRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if err != nil {
		return nil, err
	}
	return d.FromFirestore(snap.Data()), nil
}

// Create writes the document only if it does not already exist, so
// callers can use deterministic IDs for dedup.
func (d *DocumentRef[T]) Create(ctx context.Context, data *T) error {
	_, err := d.Ref.Create(ctx, d.ToFirestore(data))
	return err
}

func (d *DocumentRef[T]) Set(ctx context.Context, data *T) error {
	m := d.ToFirestore(data)
	_, err := d.Ref.Set(ctx, m, firestore.MergeAll)
	return err
}

func (d *DocumentRef[T]) Update(ctx context.Context, updates map[string]interface{}) error {
	// Simple map update - keys must match Firestore snake_case fields
	// We do not run converter here because updates are often partials/dots
	_, err := d.Ref.Set(ctx, updates, firestore.MergeAll)
	return err
}
