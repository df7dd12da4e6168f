package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"listing-composer/internal/listingapi"
	"listing-composer/internal/middleware"
	"listing-composer/internal/model"
	"listing-composer/internal/repository"
	"listing-composer/internal/service"
)

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

// memListings is an in-memory ListingStore.
type memListings struct {
	mu       sync.Mutex
	listings map[string]model.Listing
	err      error
}

func newMemListings() *memListings { return &memListings{listings: map[string]model.Listing{}} }

func (m *memListings) Create(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.listings[l.ID] = *l
	return nil
}

func (m *memListings) GetByID(_ context.Context, id string) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	return &l, nil
}

func (m *memListings) ListByUser(_ context.Context, userRef string, limit, offset int) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Listing
	for _, l := range m.listings {
		if l.UserRef == userRef {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memListings) GetFiltered(_ context.Context, f model.ListingFilter) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	matches := func(want *bool, got bool) bool { return want == nil || *want == got }
	var out []model.Listing
	for _, l := range m.listings {
		if matches(f.Offer, l.Offer) && matches(f.Parking, l.Parking) && matches(f.Furnished, l.Furnished) &&
			(f.Type == "" || f.Type == l.Type) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return []model.Listing{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// memObjects is an in-memory object store that fails files named fail-*.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjects) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if strings.Contains(key, "fail-") {
		return fmt.Errorf("rejected by storage rules")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memObjects) ResolvePublicReference(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

type testEnv struct {
	router   *gin.Engine
	listings *memListings
}

// newTestEnv wires the composer to a real listing API served over HTTP.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	listings := newMemListings()

	apiRouter := gin.New()
	(&ListingHandler{Repo: listings}).RegisterRoutes(apiRouter.Group("/api"))
	apiServer := httptest.NewServer(apiRouter)
	t.Cleanup(apiServer.Close)

	composer := service.NewComposer(
		repository.NewMemoryDraftRepository(time.Hour),
		&memObjects{objects: map[string][]byte{}},
		listingapi.NewClient(apiServer.URL, 5*time.Second),
	)

	r := gin.New()
	api := r.Group("/api")
	protected := api.Group("", middleware.JWTAuthMiddleware(testSecret))
	(&ComposerHandler{Composer: composer}).RegisterRoutes(protected)

	return &testEnv{router: r, listings: listings}
}

func (e *testEnv) do(t *testing.T, user, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, user))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, user, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return e.do(t, user, method, path, body, "application/json")
}

func (e *testEnv) upload(t *testing.T, user, draftID string, names ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, n := range names {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, n))
		h.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg:" + n))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return e.do(t, user, http.MethodPost, "/api/drafts/"+draftID+"/images", &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
