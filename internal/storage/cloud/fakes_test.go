package cloud

import (
	"context"
	"sort"
	"sync"
)

type memoryDocStore struct {
	mu   sync.Mutex
	docs map[string]map[string]Document
	err  error
}

func newMemoryDocStore() *memoryDocStore {
	return &memoryDocStore{docs: make(map[string]map[string]Document)}
}

func (m *memoryDocStore) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func copyDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (m *memoryDocStore) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return copyDoc(doc), nil
}

func (m *memoryDocStore) Create(_ context.Context, collection, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.docs[collection][id]; ok {
		return ErrDocumentExists
	}
	m.put(collection, id, doc)
	return nil
}

func (m *memoryDocStore) Set(_ context.Context, collection, id string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.put(collection, id, doc)
	return nil
}

func (m *memoryDocStore) Update(_ context.Context, collection, id string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		return ErrDocumentNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (m *memoryDocStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.docs[collection][id]; !ok {
		return ErrDocumentNotFound
	}
	delete(m.docs[collection], id)
	return nil
}

func (m *memoryDocStore) List(_ context.Context, collection string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, Snapshot{ID: id, Data: copyDoc(m.docs[collection][id])})
	}
	return out, nil
}

func (m *memoryDocStore) Increment(_ context.Context, collection, id, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	doc, ok := m.docs[collection][id]
	if !ok {
		doc = Document{}
		m.put(collection, id, doc)
		doc = m.docs[collection][id]
	}
	next := toInt64(doc[field]) + delta
	doc[field] = next
	return next, nil
}

func (m *memoryDocStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *memoryDocStore) Close() error { return nil }

func (m *memoryDocStore) put(collection, id string, doc Document) {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]Document)
	}
	m.docs[collection][id] = copyDoc(doc)
}

type fakeMirror struct {
	digest   string
	mirrored []string
}

func (f *fakeMirror) AdminPasswordDigest(context.Context) (string, error) {
	return f.digest, nil
}

func (f *fakeMirror) MirrorAdminPassword(_ context.Context, digest string) error {
	f.digest = digest
	f.mirrored = append(f.mirrored, digest)
	return nil
}
