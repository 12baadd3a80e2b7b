package listctl_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphummel/lab_inventory/internal/authclient"
	"github.com/tphummel/lab_inventory/internal/db"
	"github.com/tphummel/lab_inventory/internal/handlers"
	"github.com/tphummel/lab_inventory/internal/listctl"
	"github.com/tphummel/lab_inventory/internal/models"
	"github.com/tphummel/lab_inventory/internal/resource"
	"github.com/tphummel/lab_inventory/internal/session"
	"golang.org/x/crypto/bcrypt"
)

// newLiveController wires a controller for slug to the real inventory API
// through the authenticated transport.
func newLiveController(t *testing.T, slug string) *listctl.Controller {
	t.Helper()
	d, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	srv := httptest.NewServer(handlers.NewMux(&handlers.Handler{DB: d, BcryptCost: bcrypt.MinCost}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	auth, err := authclient.New(srv.URL, session.NewMemory(), authclient.WithLogger(quietLogger))
	require.NoError(t, err)
	_, err = auth.Register(ctx, authclient.Registration{
		Username: "admin", Email: "admin@example.com", Password: "hunter22!", ConfirmPassword: "hunter22!",
	})
	require.NoError(t, err)
	require.NoError(t, auth.Login(ctx, "admin", "hunter22!"))

	k, ok := models.LookupKind(slug)
	require.True(t, ok)
	rc, err := resource.New(srv.URL, k, resource.WithHTTPClient(auth.HTTPClient()))
	require.NoError(t, err)
	return listctl.New(rc, quietLogger)
}

func TestLiveServer_CRUDRoundTrip(t *testing.T) {
	c := newLiveController(t, "processors")
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	assert.Empty(t, c.Items())

	for _, p := range []map[string]string{
		{"name": "Ryzen 7 5800X", "brand": "AMD", "cores": "8", "speed": "3.8"},
		{"name": "Core i7-12700", "brand": "Intel", "cores": "12", "speed": "2.1"},
	} {
		require.NoError(t, c.BeginAdd())
		for k, v := range p {
			require.NoError(t, c.SetField(k, v))
		}
		require.NoError(t, c.Submit(ctx))
	}

	items := c.Items()
	require.Len(t, items, 2)
	for _, it := range items {
		assert.NotEmpty(t, it.ID)
		assert.Regexp(t, `^CPU-\d+$`, it.ReferenceID)
	}

	c.Search("intel")
	filtered := c.Filtered()
	require.Len(t, filtered, 1)
	intelID := filtered[0].ID

	require.NoError(t, c.BeginEdit(intelID))
	require.NoError(t, c.SetField("speed", "2.2"))
	require.NoError(t, c.Submit(ctx))

	require.NoError(t, c.Load(ctx))
	c.Search("")
	var updated models.Item
	for _, it := range c.Items() {
		if it.ID == intelID {
			updated = it
		}
	}
	assert.Equal(t, "2.2", updated.Get("speed"))

	require.NoError(t, c.RequestDelete(intelID))
	require.NoError(t, c.ConfirmDelete(ctx))
	s := c.Snapshot()
	assert.False(t, s.DeleteUnconfirmed)
	require.Len(t, s.Items, 1)
	assert.Equal(t, "Ryzen 7 5800X", s.Items[0].Get("name"))
}

func TestLiveServer_DuplicateCaughtLocally(t *testing.T) {
	c := newLiveController(t, "brands")
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	require.NoError(t, c.BeginAdd())
	require.NoError(t, c.SetField("name", "Acer"))
	require.NoError(t, c.Submit(ctx))

	require.NoError(t, c.BeginAdd())
	require.NoError(t, c.SetField("name", "ACER"))
	var ve *listctl.ValidationError
	require.ErrorAs(t, c.Submit(ctx), &ve)
	assert.Len(t, c.Items(), 1)
}
