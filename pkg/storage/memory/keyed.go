package memory

import (
	"sort"
	"sync"
)

type entry[T any] struct {
	mu      sync.Mutex
	value   T
	seq     uint64
	deleted bool
}

// keyedStore maps keys to values with per-key locking and creation ordering
type keyedStore[T any] struct {
	mu       sync.RWMutex
	entries  map[string]*entry[T]
	seq      uint64
	clone    func(T) T
	notFound error
	exists   error
}

func newKeyedStore[T any](clone func(T) T, notFound, exists error) *keyedStore[T] {
	return &keyedStore[T]{
		entries:  make(map[string]*entry[T]),
		clone:    clone,
		notFound: notFound,
		exists:   exists,
	}
}

func (s *keyedStore[T]) create(key string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return s.exists
	}
	s.seq++
	s.entries[key] = &entry[T]{value: s.clone(v), seq: s.seq}
	return nil
}

func (s *keyedStore[T]) lookup(key string) (*entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

func (s *keyedStore[T]) get(key string) (T, error) {
	var zero T
	e, ok := s.lookup(key)
	if !ok {
		return zero, s.notFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return zero, s.notFound
	}
	return s.clone(e.value), nil
}

func (s *keyedStore[T]) list() []T {
	s.mu.RLock()
	entries := make([]*entry[T], 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, s.clone(e.value))
		}
		e.mu.Unlock()
	}
	return out
}

// update holds the key's lock while fn edits a copy; the copy is committed only if fn succeeds
func (s *keyedStore[T]) update(key string, fn func(T) error) (T, error) {
	var zero T
	e, ok := s.lookup(key)
	if !ok {
		return zero, s.notFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return zero, s.notFound
	}
	cp := s.clone(e.value)
	if err := fn(cp); err != nil {
		return zero, err
	}
	e.value = cp
	return s.clone(cp), nil
}

func (s *keyedStore[T]) delete(key string) error {
	return s.deleteIf(key, nil)
}

// deleteIf removes key when check accepts a copy of its value. The store lock is
// taken before the key lock, matching delete.
func (s *keyedStore[T]) deleteIf(key string, check func(T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return s.notFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if check != nil {
		if err := check(s.clone(e.value)); err != nil {
			return err
		}
	}
	e.deleted = true
	delete(s.entries, key)
	return nil
}

// updateAll applies fn to a copy of every live value under that key's lock and
// commits the copies fn reports as changed. Keys come back in creation order.
func (s *keyedStore[T]) updateAll(fn func(T) bool) []string {
	type keyed struct {
		key string
		e   *entry[T]
	}
	s.mu.RLock()
	entries := make([]keyed, 0, len(s.entries))
	for k, e := range s.entries {
		entries = append(entries, keyed{key: k, e: e})
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].e.seq < entries[j].e.seq })

	changed := []string{}
	for _, ke := range entries {
		ke.e.mu.Lock()
		if !ke.e.deleted {
			cp := s.clone(ke.e.value)
			if fn(cp) {
				ke.e.value = cp
				changed = append(changed, ke.key)
			}
		}
		ke.e.mu.Unlock()
	}
	return changed
}

func (s *keyedStore[T]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
