package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps the document in process memory as encoded bytes, so
// every Load and Apply works on an independent copy.
type MemoryBackend struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data != nil {
		return nil
	}
	data, err := NewDocument().Encode()
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

func (m *MemoryBackend) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return Decode(m.data)
}

func (m *MemoryBackend) Apply(ctx context.Context, fn ApplyFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := Decode(m.data)
	if err != nil {
		return err
	}

	changed, fnErr := fn(doc)
	if changed {
		data, err := doc.Encode()
		if err != nil {
			return err
		}
		m.data = data
	}
	return fnErr
}

// Raw returns a copy of the encoded document.
func (m *MemoryBackend) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

func (m *MemoryBackend) Close() error { return nil }
