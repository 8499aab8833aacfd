package storage

import (
	"cmp"
	"errors"

	"github.com/godlixe/skiplist"
)

// AgeIndexEntry is a row of the age index. It carries a copy of
// the name and alive fields so age lookups never touch the rows.
type AgeIndexEntry struct {
	Age       int
	ID        int
	FirstName string
	LastName  string
	Alive     bool
}

func (e AgeIndexEntry) Rockstar() Rockstar {
	return Rockstar{
		ID:        e.ID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Age:       e.Age,
		Alive:     e.Alive,
	}
}

func cmpRockstar(a, b Rockstar) int {
	return cmp.Compare(a.ID, b.ID)
}

// entries are ordered by age first, then by id.
func cmpAgeIndexEntry(a, b AgeIndexEntry) int {
	if a.Age != b.Age {
		return cmp.Compare(a.Age, b.Age)
	}
	return cmp.Compare(a.ID, b.ID)
}

// Memtable holds the rockstar rows in memory, ordered by id,
// and keeps the age index in step with them.
// Memtable is not safe for concurrent use.
type Memtable struct {
	Rows     skiplist.SkipList[Rockstar]
	AgeIndex skiplist.SkipList[AgeIndexEntry]
}

func NewMemtable() *Memtable {
	return &Memtable{
		Rows:     skiplist.NewDefault(cmpRockstar),
		AgeIndex: skiplist.NewDefault(cmpAgeIndexEntry),
	}
}

func (m *Memtable) Get(id int) (Rockstar, bool, error) {
	res, err := m.Rows.Search(Rockstar{ID: id})
	if errors.Is(err, skiplist.ErrTargetNotFound) {
		return Rockstar{}, false, nil
	}
	if err != nil {
		return Rockstar{}, false, err
	}

	return res, true, nil
}

// Set replaces the row with the same id, index entry included.
func (m *Memtable) Set(r Rockstar) error {
	if _, err := m.Delete(r.ID); err != nil {
		return err
	}

	m.Rows.Set(r)
	m.AgeIndex.Set(AgeIndexEntry{
		Age:       r.Age,
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Alive:     r.Alive,
	})

	return nil
}

// Delete removes the row and its index entry.
// It reports whether the row existed.
func (m *Memtable) Delete(id int) (bool, error) {
	old, ok, err := m.Get(id)
	if err != nil || !ok {
		return false, err
	}

	m.Rows.Delete(old)
	m.AgeIndex.Delete(AgeIndexEntry{Age: old.Age, ID: old.ID})

	return true, nil
}

// Decode returns every row ordered by id.
func (m *Memtable) Decode() []Rockstar {
	res := make([]Rockstar, 0, m.Size())

	for i := m.Rows.Iterate(); i.Valid(); i.Next() {
		res = append(res, i.Data())
	}

	return res
}

// QueryAge walks the age index and stops at the first entry past age.
func (m *Memtable) QueryAge(age int) []Rockstar {
	var res []Rockstar

	for i := m.AgeIndex.Iterate(); i.Valid(); i.Next() {
		e := i.Data()
		if e.Age > age {
			break
		}
		if e.Age == age {
			res = append(res, e.Rockstar())
		}
	}

	return res
}

func (m *Memtable) Size() int {
	return m.Rows.Len()
}
