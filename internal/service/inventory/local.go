package inventory

import (
	"sort"
	"sync"

	"github.com/mamadbah2/pantry/internal/domain/models"
)

type setKey struct {
	userID     string
	collection string
}

type localEntry struct {
	product models.Product
	status  models.SyncStatus
}

func (e localEntry) view() models.ProductView {
	return models.NewProductView(e.product, e.status)
}

type localSet struct {
	entries map[models.ProductID]localEntry
	loaded  bool
}

// localStore is the in-memory read model, one set per user and collection.
type localStore struct {
	mu   sync.RWMutex
	sets map[setKey]*localSet
}

func newLocalStore() *localStore {
	return &localStore{sets: make(map[setKey]*localSet)}
}

// set must be called with mu held for writing.
func (ls *localStore) set(key setKey) *localSet {
	s, ok := ls.sets[key]
	if !ok {
		s = &localSet{entries: make(map[models.ProductID]localEntry)}
		ls.sets[key] = s
	}
	return s
}

func (ls *localStore) isLoaded(key setKey) bool {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	s, ok := ls.sets[key]
	return ok && s.loaded
}

func (ls *localStore) get(key setKey, id models.ProductID) (localEntry, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	s, ok := ls.sets[key]
	if !ok {
		return localEntry{}, false
	}
	e, ok := s.entries[id]
	return e, ok
}

func (ls *localStore) put(key setKey, p models.Product, status models.SyncStatus) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.set(key).entries[p.ID] = localEntry{product: p, status: status}
}

func (ls *localStore) restore(key setKey, e localEntry, existed bool, id models.ProductID) {
	if existed {
		ls.put(key, e.product, e.status)
		return
	}
	ls.remove(key, id)
}

func (ls *localStore) remove(key setKey, id models.ProductID) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if s, ok := ls.sets[key]; ok {
		delete(s.entries, id)
	}
}

// list returns the entries ordered by creation time, then id.
func (ls *localStore) list(key setKey) []localEntry {
	ls.mu.RLock()
	s, ok := ls.sets[key]
	if !ok {
		ls.mu.RUnlock()
		return nil
	}
	out := make([]localEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	ls.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].product, out[j].product
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (ls *localStore) products(key setKey) []models.Product {
	entries := ls.list(key)
	out := make([]models.Product, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.product)
	}
	return out
}

// load replaces the saved entries of a set with the remote records. Pending entries
// always survive; orphaned ones survive until the remote holds the record again.
func (ls *localStore) load(key setKey, remote []models.Product) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	s := ls.set(key)
	next := make(map[models.ProductID]localEntry, len(remote))
	for id, e := range s.entries {
		if e.status != models.SyncSaved {
			next[id] = e
		}
	}
	for _, p := range remote {
		if e, dirty := next[p.ID]; dirty && e.status == models.SyncPending {
			continue
		}
		next[p.ID] = localEntry{product: p, status: models.SyncSaved}
	}
	s.entries = next
	s.loaded = true
}

// unload drops the user's saved entries and marks every set for reload. Pending
// and orphaned entries stay: they may be the only copy of a record until the next
// reconcile pass writes them back.
func (ls *localStore) unload(userID string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for key, s := range ls.sets {
		if key.userID != userID {
			continue
		}
		for id, e := range s.entries {
			if e.status == models.SyncSaved {
				delete(s.entries, id)
			}
		}
		if len(s.entries) == 0 {
			delete(ls.sets, key)
			continue
		}
		s.loaded = false
	}
}
