package dispatchsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smokewatch-backend/config"
	"smokewatch-backend/internal/apperr"
)

func TestRequestDispatch(t *testing.T) {
	var got dispatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewEFlaraGateway(&config.DispatchConfig{URL: srv.URL, APIKey: "secret-key"}, srv.Client())
	require.NoError(t, g.RequestDispatch(context.Background(), "Main St 7"))

	assert.Equal(t, "Main St 7", got.Address)
	assert.Equal(t, "secret-key", got.APIKey)
}

func TestRequestDispatchFailureIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewEFlaraGateway(&config.DispatchConfig{URL: srv.URL, APIKey: "secret-key"}, srv.Client())
	err := g.RequestDispatch(context.Background(), "Main St 7")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, "DISPATCH_FAILED", apperr.Detail(err))
}
