package community

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/pkg/retry"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", Token: "secret", Timeout: time.Second})
	c.retrier = retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0))
	return c
}

func TestCreateCollaborationSpace(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/collaboration-spaces", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "match-1", r.Header.Get("Idempotency-Key"))

		var body CreateSpaceRequestDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "match-1", body.MatchID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(SpaceDTO{ID: "space-42", MatchID: body.MatchID})
	})

	id, err := c.CreateCollaborationSpace(context.Background(), "match-1")
	require.NoError(t, err)
	assert.Equal(t, "space-42", id)
}

func TestCreateCollaborationSpaceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(SpaceDTO{ID: "space-7"})
	})

	id, err := c.CreateCollaborationSpace(context.Background(), "match-1")
	require.NoError(t, err)
	assert.Equal(t, "space-7", id)
	assert.EqualValues(t, 3, calls.Load())
}

func TestCreateCollaborationSpaceClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"match is not accepted"}`))
	})

	_, err := c.CreateCollaborationSpace(context.Background(), "match-1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "match is not accepted", apiErr.Message)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCreateCollaborationSpaceEmptyID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.CreateCollaborationSpace(context.Background(), "match-1")
	assert.ErrorIs(t, err, ErrEmptySpaceID)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, c.Ping(context.Background()))
}

func TestErrorDTOMessage(t *testing.T) {
	assert.Equal(t, "a", ErrorDTO{Error: "a"}.Message())
	assert.Equal(t, "b", ErrorDTO{Error: "a", Detail: "b"}.Message())
}
