package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return NewClient(u.Hostname(), port)
}

func TestClientGetLayouts(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/layouts", r.URL.Path)
		assert.Equal(t, "tpch", r.URL.Query().Get("schema"))
		assert.Equal(t, "orders", r.URL.Query().Get("table"))
		json.NewEncoder(w).Encode(layoutsResponse{Layouts: []*Layout{
			{Version: 1, OrderPath: "/data/tpch/orders/ordered/"},
			{Version: 2, OrderPath: "/data/tpch/orders/ordered_v2/"},
		}})
	})

	layouts, err := client.GetLayouts(context.Background(), "tpch", "orders")
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, 1, layouts[0].Version)
	assert.Equal(t, 2, layouts[1].Version)
}

func TestClientErrors(t *testing.T) {
	t.Run("server error status", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := client.GetLayouts(context.Background(), "q", "t")
		assert.Error(t, err)
	})
	t.Run("application error", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(layoutsResponse{Error: "table not found"})
		})
		_, err := client.GetLayouts(context.Background(), "q", "t")
		assert.ErrorContains(t, err, "table not found")
	})
	t.Run("no layouts", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(layoutsResponse{})
		})
		_, err := client.GetLayouts(context.Background(), "q", "t")
		assert.Error(t, err)
	})
}
