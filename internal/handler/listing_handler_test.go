package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-composer/internal/model"
	"listing-composer/internal/repository"
)

func listingRouter(store ListingStore) *testEnv {
	r := gin.New()
	h := &ListingHandler{Repo: store, Now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }}
	h.RegisterRoutes(r.Group("/api"))
	return &testEnv{router: r}
}

func TestListingHandler_CreateAndGet(t *testing.T) {
	store := newMemListings()
	env := listingRouter(store)

	w := env.do(t, "", http.MethodPost, "/api/listing/create", strings.NewReader(`{
		"name":"Cozy flat by the sea","description":"d","address":"a","type":"rent",
		"bedrooms":2,"bathrooms":1,"regularPrice":1000,"discountPrice":0,
		"offer":false,"parking":true,"furnished":false,
		"imageUrls":["https://cdn.test/a.jpg"],"userRef":"user-1"}`), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[model.Listing](t, w)
	require.Len(t, created.ID, 26)
	assert.Equal(t, "user-1", created.UserRef)
	assert.True(t, created.Parking)
	assert.True(t, created.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)), created.CreatedAt)

	w = env.do(t, "", http.MethodGet, "/api/listing/get/"+created.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[map[string]any](t, w)["_id"])

	w = env.do(t, "", http.MethodGet, "/api/listing/user/user-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Listing](t, w), 1)
}

func TestListingHandler_Failures(t *testing.T) {
	store := newMemListings()
	env := listingRouter(store)

	w := env.do(t, "", http.MethodGet, "/api/listing/get/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, 404.0, body["statusCode"])

	w = env.do(t, "", http.MethodPost, "/api/listing/create", strings.NewReader(`{not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["success"])

	store.err = errors.New("db down")
	w = env.do(t, "", http.MethodPost, "/api/listing/create", strings.NewReader(`{"name":"x"}`), "application/json")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "db down", decode[map[string]any](t, w)["message"])
}

func TestListingHandler_GetListingsFilters(t *testing.T) {
	store := newMemListings()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seed := []model.ListingRequest{
		{Name: "rent offer", Type: "rent", Offer: true, ImageURLs: []string{"https://cdn.test/r1.jpg"}},
		{Name: "rent plain", Type: "rent", Parking: true},
		{Name: "sale offer", Type: "sale", Offer: true, Furnished: true},
		{Name: "sale plain", Type: "sale"},
		{Name: "sale newest", Type: "sale", Offer: true},
	}
	for i, req := range seed {
		id := fmt.Sprintf("L%d", i)
		store.listings[id] = model.Listing{ID: id, ListingRequest: req, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
	}
	env := listingRouter(store)

	names := func(w *httptest.ResponseRecorder) []string {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out []string
		for _, l := range decode[[]model.Listing](t, w) {
			out = append(out, l.Name)
		}
		return out
	}

	assert.Equal(t, []string{"sale newest", "sale offer", "rent offer"},
		names(env.do(t, "", http.MethodGet, "/api/listing/get?offer=true&limit=4", nil, "")))
	assert.Equal(t, []string{"rent plain", "rent offer"},
		names(env.do(t, "", http.MethodGet, "/api/listing/get?type=rent&limit=4", nil, "")))
	assert.Equal(t, []string{"sale plain"},
		names(env.do(t, "", http.MethodGet, "/api/listing/get?type=sale&limit=1&offset=1", nil, "")))
	assert.Equal(t, []string{"sale offer"},
		names(env.do(t, "", http.MethodGet, "/api/listing/get?furnished=true&type=all", nil, "")))
	assert.Len(t, names(env.do(t, "", http.MethodGet, "/api/listing/get", nil, "")), 5)

	w := env.do(t, "", http.MethodGet, "/api/listing/get?offer=true", nil, "")
	first := decode[[]map[string]any](t, w)[2]
	assert.Equal(t, "L0", first["_id"])
	assert.Equal(t, []any{"https://cdn.test/r1.jpg"}, first["imageUrls"])

	for _, q := range []string{"type=villa", "limit=0", "limit=x", "offset=-1", "offer=maybe"} {
		w := env.do(t, "", http.MethodGet, "/api/listing/get?"+q, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, false, decode[map[string]any](t, w)["success"])
	}
}

type fakePhotos map[string][]byte

func (f fakePhotos) DownloadPhoto(_ context.Context, id string) ([]byte, string, error) {
	data, ok := f[id]
	if !ok {
		return nil, "", repository.ErrObjectNotFound
	}
	return data, "image/png", nil
}

func TestPhotoHandler(t *testing.T) {
	r := gin.New()
	(&PhotoHandler{Repo: fakePhotos{"abc": []byte("png-bytes")}}).RegisterRoutes(r.Group("/api"))
	env := &testEnv{router: r}

	w := env.do(t, "", http.MethodGet, "/api/photos/abc", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	w = env.do(t, "", http.MethodGet, "/api/photos/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
