package store

import (
	"sort"
	"sync"

	"github.com/ChainSafe/chaindb"
)

// fakeDB is a minimal in-memory stand-in for chaindb.Database, used so
// store tests don't need a real badger data directory.
type fakeDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newFakeDB() *fakeDB {
	return &fakeDB{data: make(map[string][]byte)}
}

func (f *fakeDB) Get(key []byte) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[string(key)]
	if !ok {
		return nil, chaindb.ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (f *fakeDB) Put(key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	f.data[string(key)] = v
	return nil
}

func (f *fakeDB) Del(key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, string(key))
	return nil
}

func (f *fakeDB) Has(key []byte) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.data[string(key)]
	return ok, nil
}

func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) NewBatch() chaindb.Batch {
	return &fakeBatch{db: f}
}

func (f *fakeDB) NewIterator() chaindb.Iterator {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &fakeIterator{db: f, keys: keys, pos: -1}
}

type fakeBatch struct {
	db  *fakeDB
	ops []func()
}

func (b *fakeBatch) Put(key, value []byte) error {
	k, v := append([]byte(nil), key...), append([]byte(nil), value...)
	b.ops = append(b.ops, func() {
		b.db.mu.Lock()
		defer b.db.mu.Unlock()
		b.db.data[string(k)] = v
	})
	return nil
}

func (b *fakeBatch) Del(key []byte) error {
	k := append([]byte(nil), key...)
	b.ops = append(b.ops, func() {
		b.db.mu.Lock()
		defer b.db.mu.Unlock()
		delete(b.db.data, string(k))
	})
	return nil
}

func (b *fakeBatch) Write() error {
	for _, op := range b.ops {
		op()
	}
	return nil
}

func (b *fakeBatch) Reset() { b.ops = nil }

type fakeIterator struct {
	db   *fakeDB
	keys []string
	pos  int
}

func (it *fakeIterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *fakeIterator) Key() []byte {
	return []byte(it.keys[it.pos])
}

func (it *fakeIterator) Value() []byte {
	it.db.mu.RLock()
	defer it.db.mu.RUnlock()
	return it.db.data[it.keys[it.pos]]
}

func (it *fakeIterator) Release() {}

var _ chaindb.Database = (*fakeDB)(nil)
