package listingapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-composer/internal/model"
)

func sampleRequest() model.ListingRequest {
	return model.ListingRequest{
		Name:          "Cozy flat by the sea",
		Description:   "Bright two bedroom flat",
		Address:       "1 Beach Road",
		Type:          "rent",
		Bedrooms:      2,
		Bathrooms:     1,
		RegularPrice:  1000,
		DiscountPrice: 900,
		Offer:         true,
		ImageURLs:     []string{"https://cdn.test/a.jpg"},
		UserRef:       "user-1",
	}
}

func serve(t *testing.T, status int, body string, inspect func(r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second)
}

func TestCreateListing_Created(t *testing.T) {
	var got map[string]any
	client := serve(t, http.StatusCreated, `{"_id":"01J0ABC","name":"Cozy flat by the sea"}`, func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/listing/create", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	resp, err := client.CreateListing(context.Background(), sampleRequest())

	require.NoError(t, err)
	assert.False(t, resp.Rejected)
	assert.Equal(t, "01J0ABC", resp.ListingID)
	assert.Equal(t, "rent", got["type"])
	assert.Equal(t, 1000.0, got["regularPrice"])
	assert.Equal(t, 900.0, got["discountPrice"])
	assert.Equal(t, true, got["offer"])
	assert.Equal(t, "user-1", got["userRef"])
	assert.Equal(t, []any{"https://cdn.test/a.jpg"}, got["imageUrls"])
}

func TestCreateListing_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError} {
		client := serve(t, status, `{"success":false,"statusCode":400,"message":"Name is taken"}`, nil)

		resp, err := client.CreateListing(context.Background(), sampleRequest())

		require.NoError(t, err, status)
		assert.True(t, resp.Rejected)
		assert.Equal(t, "Name is taken", resp.Message)
	}
}

func TestCreateListing_MalformedResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not json", http.StatusOK, `<html>bad gateway</html>`},
		{"no id", http.StatusOK, `{"name":"x"}`},
		{"empty id", http.StatusOK, `{"_id":""}`},
		{"numeric id", http.StatusOK, `{"_id":42}`},
		{"array", http.StatusOK, `[]`},
		{"error status with id", http.StatusBadGateway, `{"_id":"abc"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := serve(t, tt.status, tt.body, nil)
			_, err := client.CreateListing(context.Background(), sampleRequest())
			assert.Error(t, err)
		})
	}
}

func TestCreateListing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).CreateListing(context.Background(), sampleRequest())
	assert.Error(t, err)
}
