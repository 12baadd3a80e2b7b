// Package reconcile decides whether a mutation that reported failure was in
// fact applied, by re-reading the list once and looking for its effect.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tphummel/lab_inventory/internal/models"
)

// Op is the kind of mutation being reconciled.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Lister fetches the current canonical list.
type Lister interface {
	List(ctx context.Context) ([]models.Item, error)
}

// Mutation describes the attempt that failed.
type Mutation struct {
	Op Op
	// ID is the target for update and delete.
	ID string
	// Submitted holds the values sent for create and update.
	Submitted models.Item
	// Known is the local list as it was before the attempt.
	Known []models.Item
}

// Result is the outcome of one reconciliation.
type Result struct {
	// Confirmed is true when the refreshed list shows the mutation applied.
	Confirmed bool
	// Item is the created or updated item found in Refreshed.
	Item models.Item
	// Refreshed is the list as fetched.
	Refreshed []models.Item
}

// Reconciler checks mutations against a fresh list.
type Reconciler struct {
	lister Lister
	kind   models.Kind
	logger *slog.Logger
}

// New returns a Reconciler for kind. A nil logger uses slog.Default.
func New(l Lister, kind models.Kind, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{lister: l, kind: kind, logger: logger}
}

// Reconcile fetches the list exactly once and looks for the effect of m.
// The error is non-nil only when the fetch itself failed.
func (r *Reconciler) Reconcile(ctx context.Context, m Mutation) (Result, error) {
	refreshed, err := r.lister.List(ctx)
	if err != nil {
		r.logger.Debug("reconcile fetch failed", "kind", r.kind.Slug, "op", m.Op, "error", err)
		return Result{}, fmt.Errorf("reconcile %s: %w", m.Op, err)
	}

	res := Result{Refreshed: refreshed}
	switch m.Op {
	case OpCreate:
		res.Item, res.Confirmed = r.findCreated(m, refreshed)
	case OpUpdate:
		res.Item, res.Confirmed = r.findUpdated(m, refreshed)
	case OpDelete:
		res.Confirmed = indexOf(refreshed, m.ID) < 0
	}

	r.logger.Info("reconciled mutation", "kind", r.kind.Slug, "op", m.Op,
		"id", m.ID, "confirmed", res.Confirmed)
	return res, nil
}

func (r *Reconciler) findCreated(m Mutation, refreshed []models.Item) (models.Item, bool) {
	name := strings.TrimSpace(m.Submitted.Get(r.kind.NameField))
	if name == "" {
		return models.Item{}, false
	}
	known := make(map[string]struct{}, len(m.Known))
	for _, it := range m.Known {
		known[it.ID] = struct{}{}
	}
	for _, it := range refreshed {
		if _, seen := known[it.ID]; seen {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(it.Get(r.kind.NameField)), name) {
			return it, true
		}
	}
	return models.Item{}, false
}

func (r *Reconciler) findUpdated(m Mutation, refreshed []models.Item) (models.Item, bool) {
	i := indexOf(refreshed, m.ID)
	if i < 0 {
		return models.Item{}, false
	}
	got := refreshed[i]
	for _, f := range r.kind.Fields {
		if strings.TrimSpace(got.Get(f)) != strings.TrimSpace(m.Submitted.Get(f)) {
			return models.Item{}, false
		}
	}
	return got, true
}

func indexOf(items []models.Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
