package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/yulifengwx/RazorRockstars/wal"
)

const (
	opPut    = "put"
	opDelete = "delete"
	opSeq    = "seq"
)

// journalOp is the payload of one wal entry.
type journalOp struct {
	Op        string     `json:"op"`
	Rockstars []Rockstar `json:"rockstars,omitempty"`
	IDs       []int      `json:"ids,omitempty"`
	NextID    int        `json:"nextId,omitempty"`
}

// MemoryBackend keeps the table in a Memtable.
// When it has a journal, every write is appended to the journal
// before it is applied, and the journal is replayed on open.
type MemoryBackend struct {
	mu sync.RWMutex

	table *Memtable

	// nextID is one past the largest id ever stored.
	nextID int

	journal *wal.WAL

	log hclog.Logger
}

// NewMemoryBackend returns a backend that lives only in memory.
func NewMemoryBackend(logger hclog.Logger) *MemoryBackend {
	return &MemoryBackend{
		table:  NewMemtable(),
		nextID: 1,
		log:    logger,
	}
}

// OpenMemoryBackend returns a backend journaled to a wal in dir.
func OpenMemoryBackend(dir string, logger hclog.Logger) (*MemoryBackend, error) {
	journal, err := wal.New(dir)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	b := NewMemoryBackend(logger)
	b.journal = journal

	payloads, err := journal.ReadAll()
	if errors.Is(err, wal.ErrCorrupt) {
		logger.Warn("journal has a corrupt tail, replaying the entries before it", "error", err)
	} else if err != nil {
		journal.Close()
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	for _, p := range payloads {
		var op journalOp
		if err := json.Unmarshal(p, &op); err != nil {
			journal.Close()
			return nil, fmt.Errorf("decoding journal entry: %w", err)
		}

		if err := b.apply(op); err != nil {
			journal.Close()
			return nil, err
		}
	}

	logger.Info("journal replayed", "entries", len(payloads), "rockstars", b.table.Size())

	return b, nil
}

func (b *MemoryBackend) Get(ctx context.Context, id int) (*Rockstar, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok, err := b.table.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	return &r, nil
}

func (b *MemoryBackend) ScanAll(ctx context.Context) ([]Rockstar, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.table.Decode(), nil
}

func (b *MemoryBackend) ScanIDs(ctx context.Context) ([]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows := b.table.Decode()
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	return ids, nil
}

func (b *MemoryBackend) QueryByAge(ctx context.Context, age int) ([]Rockstar, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.table.QueryAge(age), nil
}

func (b *MemoryBackend) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.table.Size(), nil
}

func (b *MemoryBackend) Put(ctx context.Context, r *Rockstar) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.ID == 0 {
		r.ID = b.nextID
	}

	return b.write(journalOp{Op: opPut, Rockstars: []Rockstar{*r}})
}

func (b *MemoryBackend) PutMany(ctx context.Context, rs []Rockstar) error {
	if len(rs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rows := make([]Rockstar, len(rs))
	copy(rows, rs)

	// generated ids start past every explicit id of the batch, the
	// counter itself only moves in apply
	next := b.nextID
	for _, r := range rows {
		next = max(next, r.ID+1)
	}
	for i := range rows {
		if rows[i].ID == 0 {
			rows[i].ID = next
			next++
		}
	}

	return b.write(journalOp{Op: opPut, Rockstars: rows})
}

func (b *MemoryBackend) DeleteMany(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.write(journalOp{Op: opDelete, IDs: ids})
}

// write journals op and applies it. Callers hold b.mu.
func (b *MemoryBackend) write(op journalOp) error {
	if b.journal != nil {
		payload, err := json.Marshal(op)
		if err != nil {
			return err
		}

		if err := b.journal.Write(payload); err != nil {
			return fmt.Errorf("writing journal: %w", err)
		}
	}

	return b.apply(op)
}

func (b *MemoryBackend) apply(op journalOp) error {
	switch op.Op {
	case opPut:
		for _, r := range op.Rockstars {
			if err := b.table.Set(r); err != nil {
				return err
			}

			if r.ID >= b.nextID {
				b.nextID = r.ID + 1
			}
		}
	case opDelete:
		for _, id := range op.IDs {
			if _, err := b.table.Delete(id); err != nil {
				return err
			}
		}
	case opSeq:
		if op.NextID > b.nextID {
			b.nextID = op.NextID
		}
	default:
		return fmt.Errorf("unknown journal op %q", op.Op)
	}

	return nil
}

// JournalLen returns the number of entries in the journal,
// zero when the backend has none.
func (b *MemoryBackend) JournalLen() int {
	if b.journal == nil {
		return 0
	}
	return b.journal.Len()
}

// Compact rewrites the journal to the id counter and a single put of
// every live row.
func (b *MemoryBackend) Compact() error {
	if b.journal == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// the counter goes first so ids of deleted rows are not handed out again
	ops := []journalOp{{Op: opSeq, NextID: b.nextID}}
	if rows := b.table.Decode(); len(rows) > 0 {
		ops = append(ops, journalOp{Op: opPut, Rockstars: rows})
	}

	payloads := make([][]byte, 0, len(ops))
	for _, op := range ops {
		payload, err := json.Marshal(op)
		if err != nil {
			return err
		}
		payloads = append(payloads, payload)
	}

	return b.journal.Rewrite(payloads)
}

func (b *MemoryBackend) Close() error {
	if b.journal == nil {
		return nil
	}
	return b.journal.Close()
}
