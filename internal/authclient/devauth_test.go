//go:build devauth

package authclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphummel/lab_inventory/internal/authclient"
)

func TestLogin_DevBypass(t *testing.T) {
	assert.True(t, authclient.DevBypassEnabled)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv.URL)
	require.NoError(t, c.Login(context.Background(), "dev", "dev"))
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, "dev-local-token", c.Store().AccessToken())

	// Any other pair still goes to the server.
	assert.Error(t, c.Login(context.Background(), "dev", "nope"))
	assert.Equal(t, int32(1), calls.Load())
}
