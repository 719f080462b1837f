package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory archive store for tests and ephemeral deployments.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	info    Info
	payload []byte
}

// NewMemory constructs an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

// Put stores a new immutable object, failing if the key exists.
func (m *Memory) Put(_ context.Context, key string, payload []byte, contentType string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; exists {
		return Info{}, fmt.Errorf("archive object %s already exists", key)
	}
	info := Info{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(payload)),
		CreatedAt:   time.Now().UTC(),
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.objects[key] = memoryObject{info: info, payload: cp}
	return info, nil
}

// Get returns the object metadata and payload.
func (m *Memory) Get(_ context.Context, key string) (Info, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return Info{}, nil, fmt.Errorf("archive object %s not found", key)
	}
	cp := make([]byte, len(obj.payload))
	copy(cp, obj.payload)
	return obj.info, cp, nil
}

// List returns objects whose keys start with prefix, ordered by key.
func (m *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Info
	for key, obj := range m.objects {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			out = append(out, obj.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
