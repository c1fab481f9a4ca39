package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/board"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

func newBridgeServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL)
}

func TestLocateAndSample(t *testing.T) {
	_, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/board", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"found": true,
			"fen":   board.StartingFEN,
		})
	})

	assert.True(t, client.Locate(context.Background()))

	snap, err := client.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, board.StartingFEN, snap.FEN)
	assert.Equal(t, domain.White, snap.SideToMove)
}

func TestSampleNoBoard(t *testing.T) {
	_, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"found": false})
	})

	assert.False(t, client.Locate(context.Background()))

	_, err := client.Sample(context.Background())
	assert.ErrorIs(t, err, ErrNoBoard)
}

func TestExecuteMove(t *testing.T) {
	var got atomic.Value
	_, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/move", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got.Store(req["move"])
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true})
	})

	accepted, err := client.Execute(context.Background(), domain.Move("e2e4"))
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, "e2e4", got.Load())
}

func TestExecuteRejected(t *testing.T) {
	_, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": false})
	})

	accepted, err := client.Execute(context.Background(), domain.Move("e2e4"))
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestHighlightEndpoints(t *testing.T) {
	var posts, deletes atomic.Int32
	_, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/highlight", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			posts.Add(1)
		case http.MethodDelete:
			deletes.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	client.Show(domain.Move("e2e4"))
	client.Clear()
	assert.Equal(t, int32(1), posts.Load())
	assert.Equal(t, int32(1), deletes.Load())
}

func TestSampleRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	_, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"found": true,
			"fen":   board.StartingFEN,
		})
	})

	snap, err := client.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, board.StartingFEN, snap.FEN)
	assert.Equal(t, int32(2), calls.Load(), "first attempt 503, second succeeds")
}

func TestSampleGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	_, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Sample(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "default retry budget is three attempts")
}

func TestExecuteNeverRetries(t *testing.T) {
	var calls atomic.Int32
	_, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Execute(context.Background(), domain.Move("e2e4"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a move dispatch must not be replayed")
}

func TestLocateServerDown(t *testing.T) {
	srv, client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	assert.False(t, client.Locate(context.Background()))
}
