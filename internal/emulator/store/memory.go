package store

import (
	"context"
	"slices"
	"sort"
	"sync"
)

type docKey struct {
	database   string
	collection string
	id         string
}

// Memory is a Backend held in process memory. It is lost on restart.
type Memory struct {
	mu        sync.RWMutex
	resources map[Kind]map[string]Record
	documents map[docKey]Document
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		resources: map[Kind]map[string]Record{
			KindDatabase:  {},
			KindIndex:     {},
			KindField:     {},
			KindOperation: {},
		},
		documents: make(map[docKey]Document),
	}
}

func copyRecord(r Record) Record {
	r.Body = append([]byte(nil), r.Body...)
	return r
}

func (m *Memory) Insert(_ context.Context, kind Kind, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[kind][r.Name]; ok {
		return alreadyExists(kind, r.Name)
	}
	m.resources[kind][r.Name] = copyRecord(r)
	return nil
}

func (m *Memory) Upsert(_ context.Context, kind Kind, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[kind][r.Name] = copyRecord(r)
	return nil
}

func (m *Memory) Update(_ context.Context, kind Kind, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[kind][r.Name]; !ok {
		return notFound(kind, r.Name)
	}
	m.resources[kind][r.Name] = copyRecord(r)
	return nil
}

func (m *Memory) Get(_ context.Context, kind Kind, name string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[kind][name]
	if !ok {
		return Record{}, notFound(kind, name)
	}
	return copyRecord(r), nil
}

func (m *Memory) List(_ context.Context, kind Kind, f Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.resources[kind] {
		if f.Parent != "" && r.Parent != f.Parent {
			continue
		}
		if f.Collection != "" && r.Collection != f.Collection {
			continue
		}
		out = append(out, copyRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Delete(_ context.Context, kind Kind, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[kind][name]; !ok {
		return notFound(kind, name)
	}
	delete(m.resources[kind], name)
	return nil
}

func (m *Memory) Purge(_ context.Context, database string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[KindDatabase][database]; !ok {
		return notFound(KindDatabase, database)
	}
	delete(m.resources[KindDatabase], database)
	for _, kind := range []Kind{KindIndex, KindField, KindOperation} {
		for name, r := range m.resources[kind] {
			if r.Parent == database {
				delete(m.resources[kind], name)
			}
		}
	}
	for k := range m.documents {
		if k.database == database {
			delete(m.documents, k)
		}
	}
	return nil
}

func (m *Memory) PutDocuments(_ context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		d.Data = append([]byte(nil), d.Data...)
		m.documents[docKey{d.Database, d.Collection, d.ID}] = d
	}
	return nil
}

func matchCollection(collections []string, c string) bool {
	return len(collections) == 0 || slices.Contains(collections, c)
}

func (m *Memory) ListDocuments(_ context.Context, database string, collections []string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for k, d := range m.documents {
		if k.database != database || !matchCollection(collections, k.collection) {
			continue
		}
		d.Data = append([]byte(nil), d.Data...)
		out = append(out, d)
	}
	sortDocuments(out)
	return out, nil
}

func (m *Memory) DeleteDocuments(_ context.Context, database string, collections []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.documents {
		if k.database == database && matchCollection(collections, k.collection) {
			delete(m.documents, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
