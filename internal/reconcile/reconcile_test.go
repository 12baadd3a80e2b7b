package reconcile_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphummel/lab_inventory/internal/models"
	"github.com/tphummel/lab_inventory/internal/reconcile"
)

type stubLister struct {
	items []models.Item
	err   error
	calls int
}

func (s *stubLister) List(context.Context) ([]models.Item, error) {
	s.calls++
	return s.items, s.err
}

func brand(id, name string) models.Item {
	return models.Item{ID: id, Fields: map[string]string{"name": name, "description": ""}}
}

func newReconciler(t *testing.T, l reconcile.Lister) *reconcile.Reconciler {
	t.Helper()
	k, ok := models.LookupKind("brands")
	require.True(t, ok)
	return reconcile.New(l, k, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReconcile_Create(t *testing.T) {
	known := []models.Item{brand("1", "Acer")}

	tests := []struct {
		name      string
		refreshed []models.Item
		submitted string
		want      bool
		wantID    string
	}{
		{"found new item", []models.Item{brand("1", "Acer"), brand("2", "Dell")}, "Dell", true, "2"},
		{"case and space insensitive", []models.Item{brand("1", "Acer"), brand("2", "dell ")}, "Dell", true, "2"},
		{"not there", []models.Item{brand("1", "Acer")}, "Dell", false, ""},
		{"only pre-existing item matches", []models.Item{brand("1", "Acer")}, "Acer", false, ""},
		{"empty name never matches", []models.Item{brand("1", "Acer"), brand("2", "")}, "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &stubLister{items: tt.refreshed}
			res, err := newReconciler(t, l).Reconcile(context.Background(), reconcile.Mutation{
				Op: reconcile.OpCreate, Submitted: brand("", tt.submitted), Known: known,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Confirmed)
			assert.Equal(t, tt.wantID, res.Item.ID)
			assert.Equal(t, 1, l.calls)
		})
	}
}

func TestReconcile_Update(t *testing.T) {
	submitted := models.Item{ID: "6", Fields: map[string]string{"name": "HP Inc", "description": "printers"}}

	tests := []struct {
		name      string
		refreshed []models.Item
		want      bool
	}{
		{"applied", []models.Item{brand("5", "Dell"), {ID: "6", Fields: map[string]string{"name": "HP Inc", "description": "printers"}}}, true},
		{"not applied", []models.Item{brand("5", "Dell"), brand("6", "HP")}, false},
		{"partially applied", []models.Item{{ID: "6", Fields: map[string]string{"name": "HP Inc", "description": ""}}}, false},
		{"target gone", []models.Item{brand("5", "Dell")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newReconciler(t, &stubLister{items: tt.refreshed}).Reconcile(context.Background(), reconcile.Mutation{
				Op: reconcile.OpUpdate, ID: "6", Submitted: submitted,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Confirmed)
			assert.Equal(t, tt.refreshed, res.Refreshed)
		})
	}
}

func TestReconcile_Delete(t *testing.T) {
	r := newReconciler(t, &stubLister{items: []models.Item{brand("6", "HP")}})

	res, err := r.Reconcile(context.Background(), reconcile.Mutation{Op: reconcile.OpDelete, ID: "5"})
	require.NoError(t, err)
	assert.True(t, res.Confirmed)

	res, err = r.Reconcile(context.Background(), reconcile.Mutation{Op: reconcile.OpDelete, ID: "6"})
	require.NoError(t, err)
	assert.False(t, res.Confirmed)
}

func TestReconcile_FetchError(t *testing.T) {
	boom := errors.New("cannot connect to server")
	l := &stubLister{err: boom}
	res, err := newReconciler(t, l).Reconcile(context.Background(), reconcile.Mutation{Op: reconcile.OpDelete, ID: "5"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Confirmed)
	assert.Equal(t, 1, l.calls)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "update", reconcile.OpUpdate.String())
	assert.Equal(t, "Op(7)", reconcile.Op(7).String())
}
