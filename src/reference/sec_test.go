package reference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const secPayload = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
	"1": {"cik_str": 789019, "ticker": "MSFT", "title": "Microsoft Corp"},
	"2": {"cik_str": 1318605, "ticker": "TSLA", "title": "Tesla, Inc."}
}`

func TestSECAdapter_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"), "the SEC rejects requests without a User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(secPayload))
	}))
	defer server.Close()

	adapter := NewSECAdapter(server.URL, 5*time.Second)
	table, err := adapter.Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	// Periods and commas are stripped so exact matching is not defeated by
	// formatting differences alone.
	assert.Equal(t, "AAPL", table.Entries["Apple Inc"])
	assert.Equal(t, "TSLA", table.Entries["Tesla Inc"])
	assert.Equal(t, "MSFT", table.Entries["Microsoft Corp"])
}

func TestSECAdapter_Fetch_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	adapter := NewSECAdapter(server.URL, 5*time.Second)
	table, err := adapter.Fetch(context.Background())

	assert.Error(t, err)
	assert.True(t, table.Empty(), "failures yield an empty table, never a partial one")
}

func TestSECAdapter_Fetch_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	adapter := NewSECAdapter(server.URL, 5*time.Second)
	table, err := adapter.Fetch(context.Background())

	assert.Error(t, err)
	assert.True(t, table.Empty())
}

func TestSECAdapter_Fetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // immediately, so the port refuses connections

	adapter := NewSECAdapter(server.URL, time.Second)
	table, err := adapter.Fetch(context.Background())

	assert.Error(t, err)
	assert.True(t, table.Empty())
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "periods stripped", title: "Apple Inc.", want: "Apple Inc"},
		{name: "commas stripped", title: "Tesla, Inc.", want: "Tesla Inc"},
		{name: "untouched", title: "Microsoft Corp", want: "Microsoft Corp"},
		{name: "whitespace trimmed", title: "  Shell PLC ", want: "Shell PLC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeTitle(tt.title))
		})
	}
}
