package blob

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"lab-report-access/internal/domain"
)

const blobPathPrefix = "/blobs/"

var ErrBlobNotFound = errors.New("blob not found")

type memoryBlob struct {
	data []byte
	mime string
}

// MemoryStore keeps materialized reports in process. Its URLs resolve through
// the blob router while the handle is live.
type MemoryStore struct {
	baseURL string

	mu    sync.RWMutex
	blobs map[string]memoryBlob
	keys  map[string]string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		blobs:   make(map[string]memoryBlob),
		keys:    make(map[string]string),
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, p domain.NormalizedPayload) (string, error) {
	id := uuid.NewString()
	data := make([]byte, len(p.Bytes))
	copy(data, p.Bytes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = memoryBlob{data: data, mime: p.Mime}
	s.keys[key] = id
	return s.baseURL + blobPathPrefix + id, nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.keys[key]; ok {
		delete(s.blobs, id)
		delete(s.keys, key)
	}
	return nil
}

func (s *MemoryStore) Get(id string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	if !ok {
		return nil, "", ErrBlobNotFound
	}
	return b.data, b.mime, nil
}

// Open dereferences a URL previously returned by Put.
func (s *MemoryStore) Open(url string) ([]byte, string, error) {
	idx := strings.LastIndex(url, blobPathPrefix)
	if idx < 0 {
		return nil, "", ErrBlobNotFound
	}
	return s.Get(url[idx+len(blobPathPrefix):])
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
