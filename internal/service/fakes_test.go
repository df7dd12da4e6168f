package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"listing-composer/internal/model"
)

type fakeFile struct {
	name    string
	data    []byte
	openErr error
}

// newFile returns a file whose body is its own name, so fakeStore can tell
// uploads apart regardless of the generated key.
func newFile(name string) *fakeFile { return &fakeFile{name: name, data: []byte(name)} }

func (f *fakeFile) Name() string        { return f.name }
func (f *fakeFile) Size() int64         { return int64(len(f.data)) }
func (f *fakeFile) ContentType() string { return "image/jpeg" }
func (f *fakeFile) Open() (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func files(names ...string) []File {
	out := make([]File, len(names))
	for i, n := range names {
		out[i] = newFile(n)
	}
	return out
}

type fakeStore struct {
	mu         sync.Mutex
	gates      map[string]chan struct{}
	fail       map[string]error
	resolveErr error
	uploaded   []string
	deleted    []string
	calls      atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{gates: map[string]chan struct{}{}, fail: map[string]error{}}
}

// hold makes the upload of the named file block until the returned func runs.
func (s *fakeStore) hold(name string) func() {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[name] = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (s *fakeStore) failOn(name string, err error) {
	s.mu.Lock()
	s.fail[name] = err
	s.mu.Unlock()
}

func (s *fakeStore) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	s.calls.Add(1)
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	name := string(b)
	s.mu.Lock()
	gate, ferr := s.gates[name], s.fail[name]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if ferr != nil {
		return ferr
	}
	s.mu.Lock()
	s.uploaded = append(s.uploaded, key)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) ResolvePublicReference(_ context.Context, key string) (string, error) {
	if s.resolveErr != nil {
		return "", s.resolveErr
	}
	return "https://cdn.test/" + key, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type fakeAPI struct {
	mu    sync.Mutex
	resp  CreateResponse
	err   error
	calls int
	last  model.ListingRequest
	gate  chan struct{}
}

func (a *fakeAPI) CreateListing(_ context.Context, req model.ListingRequest) (CreateResponse, error) {
	if a.gate != nil {
		<-a.gate
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.last = req
	return a.resp, a.err
}

func (a *fakeAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type memDrafts struct {
	mu        sync.Mutex
	sessions  map[string]model.DraftSession
	deleteErr error
}

func newMemDrafts() *memDrafts { return &memDrafts{sessions: map[string]model.DraftSession{}} }

func (m *memDrafts) Get(_ context.Context, id string) (*model.DraftSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	s.Draft = s.Draft.Clone()
	return &s, nil
}

func (m *memDrafts) Save(_ context.Context, s *model.DraftSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Draft = s.Draft.Clone()
	m.sessions[s.ID] = cp
	return nil
}

func (m *memDrafts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.sessions, id)
	return nil
}

var errBoom = errors.New("boom")
