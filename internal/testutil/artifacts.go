package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/store"
)

// MemArtifacts is an in-memory store.ArtifactStore. Put stamps objects with
// Clock, which defaults to time.Now.
type MemArtifacts struct {
	mu      sync.Mutex
	objects map[string]memObject

	Clock func() time.Time
}

type memObject struct {
	body     []byte
	modified time.Time
}

func NewMemArtifacts() *MemArtifacts {
	return &MemArtifacts{objects: make(map[string]memObject), Clock: time.Now}
}

// PutAt stores an object with an explicit modification time.
func (a *MemArtifacts) PutAt(key string, body []byte, modified time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = memObject{body: append([]byte(nil), body...), modified: modified}
}

func (a *MemArtifacts) Put(_ context.Context, key string, body []byte, _ string) error {
	a.PutAt(key, body, a.Clock())
	return nil
}

func (a *MemArtifacts) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), o.body...), nil
}

func (a *MemArtifacts) List(_ context.Context, prefix string) ([]common.Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []common.Artifact
	for k, o := range a.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, common.Artifact{Key: k, Size: int64(len(o.body)), LastModified: o.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (a *MemArtifacts) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	return nil
}

// Keys returns all stored keys in order.
func (a *MemArtifacts) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ store.ArtifactStore = (*MemArtifacts)(nil)
