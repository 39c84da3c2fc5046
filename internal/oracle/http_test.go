package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namereg/pkg/platform/sentinel"
)

func TestHTTPClient_BalanceOf(t *testing.T) {
	t.Run("returns the reported balance", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/balances/0xtoken/alice", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"balance": 250}`))
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "0xtoken")
		balance, err := client.BalanceOf(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(250), balance)
	})

	t.Run("treats unknown account as zero balance", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "0xtoken")
		balance, err := client.BalanceOf(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Zero(t, balance)
	})

	t.Run("maps server errors to ErrUnavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "0xtoken")
		_, err := client.BalanceOf(context.Background(), "alice")
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("escapes identity path segments", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			_, _ = w.Write([]byte(`{"balance": 1}`))
		}))
		defer srv.Close()

		client := NewHTTPClient(srv.URL, "0xtoken")
		_, err := client.BalanceOf(context.Background(), "weird/id")
		require.NoError(t, err)
		assert.Equal(t, "/balances/0xtoken/weird%2Fid", gotPath)
	})
}
