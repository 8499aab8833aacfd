package storage

import "context"

// Backend is implemented by every storage engine the service can run on.
// Put assigns a fresh id from the engine's own counter when the record id
// is zero and writes it back into the record.
type Backend interface {
	Get(ctx context.Context, id int) (*Rockstar, error)
	ScanAll(ctx context.Context) ([]Rockstar, error)
	ScanIDs(ctx context.Context) ([]int, error)
	QueryByAge(ctx context.Context, age int) ([]Rockstar, error)
	Count(ctx context.Context) (int, error)
	Put(ctx context.Context, r *Rockstar) error
	PutMany(ctx context.Context, rs []Rockstar) error
	DeleteMany(ctx context.Context, ids []int) error
	Close() error
}

// Store is a layer of abstraction over the storage engine.
// The service only talks to the engine through it.
type Store struct {
	Backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{
		Backend: backend,
	}
}

func (s *Store) Get(ctx context.Context, id int) (*Rockstar, error) {
	return s.Backend.Get(ctx, id)
}

func (s *Store) ScanAll(ctx context.Context) ([]Rockstar, error) {
	return s.Backend.ScanAll(ctx)
}

func (s *Store) ScanIDs(ctx context.Context) ([]int, error) {
	return s.Backend.ScanIDs(ctx)
}

func (s *Store) QueryByAge(ctx context.Context, age int) ([]Rockstar, error) {
	return s.Backend.QueryByAge(ctx, age)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.Backend.Count(ctx)
}

func (s *Store) Put(ctx context.Context, r *Rockstar) error {
	return s.Backend.Put(ctx, r)
}

func (s *Store) PutMany(ctx context.Context, rs []Rockstar) error {
	return s.Backend.PutMany(ctx, rs)
}

func (s *Store) Delete(ctx context.Context, id int) error {
	return s.Backend.DeleteMany(ctx, []int{id})
}

func (s *Store) DeleteMany(ctx context.Context, ids []int) error {
	return s.Backend.DeleteMany(ctx, ids)
}

func (s *Store) Close() error {
	return s.Backend.Close()
}
