package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-composer/internal/service"
)

type errorBody struct {
	Error string               `json:"error"`
	Draft *service.SessionView `json:"draft"`
}

func newDraft(t *testing.T, env *testEnv, user string) service.SessionView {
	t.Helper()
	w := env.doJSON(t, user, http.MethodPost, "/api/drafts", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[service.SessionView](t, w)
}

func fillDraft(t *testing.T, env *testEnv, user, id string) {
	t.Helper()
	fields := map[string]any{
		"name":          "Cozy flat by the sea",
		"description":   "Bright two bedroom flat",
		"address":       "1 Beach Road",
		"bedrooms":      2,
		"bathrooms":     1,
		"regularPrice":  1200,
		"discountPrice": 1000,
	}
	for field, value := range fields {
		w := env.doJSON(t, user, http.MethodPatch, "/api/drafts/"+id+"/fields", map[string]any{"field": field, "value": value})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestComposerHandler_CreatesListing(t *testing.T) {
	env := newTestEnv(t)
	draft := newDraft(t, env, "user-1")
	assert.Equal(t, "rent", string(draft.Draft.PropertyType))
	assert.Equal(t, 50.0, draft.Draft.RegularPrice)

	w := env.upload(t, "user-1", draft.ID, "front.jpg", "kitchen.jpg")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[service.SessionView](t, w)
	require.Len(t, view.Draft.Images, 2)
	assert.True(t, strings.HasSuffix(string(view.Draft.Images[0]), "-front.jpg"))

	fillDraft(t, env, "user-1", draft.ID)
	w = env.doJSON(t, "user-1", http.MethodPut, "/api/drafts/"+draft.ID+"/type", map[string]string{"type": "sale"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.doJSON(t, "user-1", http.MethodPost, "/api/drafts/"+draft.ID+"/flags/hasOffer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[service.SessionView](t, w).Draft.HasOffer)

	w = env.doJSON(t, "user-1", http.MethodPost, "/api/drafts/"+draft.ID+"/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]string](t, w)
	require.NotEmpty(t, created["listingId"])
	assert.Equal(t, "/listing/"+created["listingId"], created["location"])

	stored, ok := env.listings.listings[created["listingId"]]
	require.True(t, ok)
	assert.Equal(t, "user-1", stored.UserRef)
	assert.Equal(t, "sale", stored.Type)
	assert.True(t, stored.Offer)
	assert.Equal(t, 1000.0, stored.DiscountPrice)
	assert.Len(t, stored.ImageURLs, 2)

	w = env.doJSON(t, "user-1", http.MethodGet, "/api/drafts/"+draft.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComposerHandler_UploadErrors(t *testing.T) {
	env := newTestEnv(t)
	draft := newDraft(t, env, "user-1")

	w := env.upload(t, "user-1", draft.ID, "1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg", "7.jpg")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgTooManyImages, decode[errorBody](t, w).Error)

	w = env.upload(t, "user-1", draft.ID)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.upload(t, "user-1", draft.ID, "ok.jpg", "fail-huge.jpg")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, service.MsgUploadFailed, body.Error)
	require.NotNil(t, body.Draft)
	assert.Empty(t, body.Draft.Draft.Images)
	assert.Equal(t, service.MsgUploadFailed, body.Draft.ImageUploadError)
}

func TestComposerHandler_FieldErrors(t *testing.T) {
	env := newTestEnv(t)
	draft := newDraft(t, env, "user-1")
	path := "/api/drafts/" + draft.ID

	tests := []struct {
		name   string
		method string
		url    string
		body   any
		status int
	}{
		{"unknown field", http.MethodPatch, path + "/fields", map[string]any{"field": "owner", "value": "x"}, http.StatusBadRequest},
		{"wrong type", http.MethodPatch, path + "/fields", map[string]any{"field": "bedrooms", "value": "two"}, http.StatusBadRequest},
		{"missing field", http.MethodPatch, path + "/fields", map[string]any{"value": 1}, http.StatusBadRequest},
		{"bad type", http.MethodPut, path + "/type", map[string]string{"type": "lease"}, http.StatusBadRequest},
		{"bad flag", http.MethodPost, path + "/flags/hasPool", nil, http.StatusBadRequest},
		{"bad index", http.MethodDelete, path + "/images/first", nil, http.StatusBadRequest},
		{"index out of range", http.MethodDelete, path + "/images/0", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.doJSON(t, "user-1", tt.method, tt.url, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[errorBody](t, w).Error)
		})
	}
}

func TestComposerHandler_SubmitRejectedLocally(t *testing.T) {
	env := newTestEnv(t)
	draft := newDraft(t, env, "user-1")
	fillDraft(t, env, "user-1", draft.ID)

	w := env.doJSON(t, "user-1", http.MethodPost, "/api/drafts/"+draft.ID+"/submit", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, service.MsgImageRequired, body.Error)
	require.NotNil(t, body.Draft)
	assert.Equal(t, service.MsgImageRequired, body.Draft.SubmissionError)
	assert.Empty(t, env.listings.listings)
}

func TestComposerHandler_AccessControl(t *testing.T) {
	env := newTestEnv(t)
	draft := newDraft(t, env, "user-1")

	w := env.doJSON(t, "", http.MethodGet, "/api/drafts/"+draft.ID, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.doJSON(t, "user-2", http.MethodGet, "/api/drafts/"+draft.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.doJSON(t, "user-2", http.MethodDelete, "/api/drafts/"+draft.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.doJSON(t, "user-1", http.MethodDelete, "/api/drafts/"+draft.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: d1", service.ErrDraftNotFound), http.StatusNotFound},
		{service.ErrOperationInProgress, http.StatusConflict},
		{service.ErrDraftSubmitted, http.StatusConflict},
		{fmt.Errorf("%w: name taken", service.ErrValidationRejected), http.StatusUnprocessableEntity},
		{service.ErrUploadTransferFailed, http.StatusBadGateway},
		{fmt.Errorf("%w: dial tcp", service.ErrTransportFailed), http.StatusBadGateway},
		{service.ErrTooManyImages, http.StatusBadRequest},
		{service.ErrUnknownFlag, http.StatusBadRequest},
		{errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
