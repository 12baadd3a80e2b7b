// Package listctl drives one list/detail admin page for a resource kind:
// the canonical list, the search filter, the inline add/edit form and the
// delete confirmation, with at most one request in flight.
package listctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/tphummel/lab_inventory/internal/models"
	"github.com/tphummel/lab_inventory/internal/reconcile"
	"github.com/tphummel/lab_inventory/internal/resource"
)

var (
	// ErrBusy is returned when another request is still in flight.
	ErrBusy = errors.New("another operation is in progress")
	// ErrInvalidState is returned for a gesture the current state does not
	// allow, e.g. Submit with no form open.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrNotFound is returned when an id is not in the canonical list.
	ErrNotFound = errors.New("item not found")
	// ErrUnidentified is returned when a create was accepted without an id
	// and a fresh fetch could not find the new item either.
	ErrUnidentified = errors.New("server did not return the saved item's id")
)

// State is the controller's position in the page lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateEditing
	StateSubmitting
	StateConfirmingDelete
	StateDeleting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateConfirmingDelete:
		return "confirming-delete"
	case StateDeleting:
		return "deleting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ValidationError is a form problem caught before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Resource is the subset of resource.Client the controller uses.
type Resource interface {
	Kind() models.Kind
	List(ctx context.Context) ([]models.Item, error)
	Create(ctx context.Context, it models.Item) (models.Item, error)
	Update(ctx context.Context, id string, it models.Item) (models.Item, error)
	Delete(ctx context.Context, id string) error
}

// Controller is safe for concurrent use.
type Controller struct {
	res    Resource
	kind   models.Kind
	rec    *reconcile.Reconciler
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	items    []models.Item
	filtered []models.Item
	term     string
	// edit is the open form; editID is "" when adding.
	edit   *models.Item
	editID string
	// pending is the item awaiting delete confirmation.
	pending           *models.Item
	err               error
	deleteUnconfirmed bool
	// loadGen increments on every Load so a slower, older fetch cannot
	// overwrite a newer result.
	loadGen uint64
}

// New returns an idle controller with an empty list. Call Load to populate.
func New(res Resource, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	k := res.Kind()
	return &Controller{
		res:    res,
		kind:   k,
		rec:    reconcile.New(res, k, logger),
		logger: logger,
	}
}

// Kind returns the resource kind under control.
func (c *Controller) Kind() models.Kind { return c.kind }

// Load replaces the canonical list with a fresh fetch. A failure clears
// the list and records the error.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateLoading:
	case StateSubmitting, StateDeleting:
		c.mu.Unlock()
		return ErrBusy
	default:
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = StateLoading
	c.err = nil
	c.deleteUnconfirmed = false
	c.loadGen++
	gen := c.loadGen
	c.mu.Unlock()

	items, err := c.res.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.loadGen {
		c.logger.Debug("discarding stale list fetch", "kind", c.kind.Slug, "generation", gen)
		return err
	}
	c.applyLoad(items, err)
	c.state = StateIdle
	return err
}

// applyLoad installs a fetch result. Caller holds c.mu.
func (c *Controller) applyLoad(items []models.Item, err error) {
	if err != nil {
		c.items = nil
		c.err = err
	} else {
		c.items = items
	}
	c.refilter()
}

// Search sets the filter term and recomputes the filtered list.
func (c *Controller) Search(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.term = term
	c.refilter()
}

// Items returns a copy of the canonical list.
func (c *Controller) Items() []models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneItems(c.items)
}

// Filtered returns a copy of the filtered list.
func (c *Controller) Filtered() []models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneItems(c.filtered)
}

// refilter recomputes c.filtered. Caller holds c.mu.
func (c *Controller) refilter() {
	c.filtered = Filter(c.items, c.term, c.kind.SearchFields)
}

// Filter returns the items where any of fields contains term, ignoring
// case. An empty term returns a copy of all items.
func Filter(items []models.Item, term string, fields []string) []models.Item {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return cloneItems(items)
	}
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(it.Get(f)), term) {
				out = append(out, it.Clone())
				break
			}
		}
	}
	return out
}

// BeginAdd opens an empty form.
func (c *Controller) BeginAdd() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireIdle(); err != nil {
		return err
	}
	blank := models.Item{Fields: make(map[string]string, len(c.kind.Fields))}
	for _, f := range c.kind.Fields {
		blank.Fields[f] = ""
	}
	c.edit = &blank
	c.editID = ""
	c.err = nil
	c.deleteUnconfirmed = false
	c.state = StateEditing
	return nil
}

// BeginEdit opens the form on a copy of item id.
func (c *Controller) BeginEdit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireIdle(); err != nil {
		return err
	}
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%s %q: %w", c.kind.Label, id, ErrNotFound)
	}
	cp := c.items[i].Clone()
	c.edit = &cp
	c.editID = id
	c.err = nil
	c.deleteUnconfirmed = false
	c.state = StateEditing
	return nil
}

// SetField updates one field of the open form.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEditing {
		return ErrInvalidState
	}
	if !c.kind.HasField(name) {
		return &ValidationError{Field: name, Message: fmt.Sprintf("unknown field %q for %s", name, c.kind.Label)}
	}
	c.edit.Set(name, value)
	return nil
}

// Cancel discards the open form.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEditing {
		return ErrInvalidState
	}
	c.closeForm()
	return nil
}

func (c *Controller) closeForm() {
	c.edit = nil
	c.editID = ""
	c.state = StateIdle
}

// Submit validates the form and sends it. On success the canonical list is
// updated in place and the form closes. An ambiguous failure is reconciled
// against one fresh fetch; an unconfirmed failure leaves the form open with
// the error recorded.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateEditing {
		busy := c.state == StateSubmitting || c.state == StateDeleting || c.state == StateLoading
		c.mu.Unlock()
		if busy {
			return ErrBusy
		}
		return ErrInvalidState
	}
	draft := c.edit.Clone()
	for k, v := range draft.Fields {
		draft.Fields[k] = strings.TrimSpace(v)
	}
	editID := c.editID
	if err := c.validate(draft, editID); err != nil {
		c.err = err
		c.mu.Unlock()
		return err
	}
	known := cloneItems(c.items)
	c.state = StateSubmitting
	c.err = nil
	c.mu.Unlock()

	var (
		saved models.Item
		err   error
		op    = reconcile.OpCreate
	)
	if editID == "" {
		saved, err = c.res.Create(ctx, draft)
	} else {
		op = reconcile.OpUpdate
		saved, err = c.res.Update(ctx, editID, draft)
	}

	// An accepted create without an id cannot be spliced into the list;
	// look for it in a fresh fetch instead.
	unidentified := err == nil && op == reconcile.OpCreate && saved.ID == ""
	if unidentified {
		err = ErrUnidentified
	}

	var refreshed []models.Item
	confirmed := err == nil
	if err != nil && resource.IsAmbiguous(err) {
		res, rerr := c.rec.Reconcile(ctx, reconcile.Mutation{Op: op, ID: editID, Submitted: draft, Known: known})
		if rerr == nil && res.Confirmed {
			confirmed = true
			saved = res.Item
			refreshed = res.Refreshed
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !confirmed {
		c.err = err
		c.state = StateEditing
		return err
	}

	switch {
	case unidentified:
		c.items = refreshed
	case op == reconcile.OpUpdate && refreshed != nil:
		c.items = refreshed
	case op == reconcile.OpUpdate:
		if i := c.indexOf(editID); i >= 0 {
			c.items[i] = saved
		} else {
			c.items = append(c.items, saved)
		}
	default:
		if c.indexOf(saved.ID) < 0 {
			c.items = append(c.items, saved)
		}
	}
	c.refilter()
	c.err = nil
	c.closeForm()
	return nil
}

// validate checks required fields and name uniqueness. Caller holds c.mu.
func (c *Controller) validate(draft models.Item, editID string) error {
	for _, f := range c.kind.Required {
		if draft.Get(f) == "" {
			return &ValidationError{Field: f, Message: f + " is required"}
		}
	}
	name := draft.Get(c.kind.NameField)
	for _, it := range c.items {
		if it.ID == editID && editID != "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(it.Get(c.kind.NameField)), name) {
			return &ValidationError{
				Field:   c.kind.NameField,
				Message: fmt.Sprintf("%s %q already exists", c.kind.Label, name),
			}
		}
	}
	return nil
}

// RequestDelete asks for confirmation before deleting item id.
func (c *Controller) RequestDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireIdle(); err != nil {
		return err
	}
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%s %q: %w", c.kind.Label, id, ErrNotFound)
	}
	cp := c.items[i].Clone()
	c.pending = &cp
	c.err = nil
	c.deleteUnconfirmed = false
	c.state = StateConfirmingDelete
	return nil
}

// CancelDelete closes the confirmation without deleting.
func (c *Controller) CancelDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConfirmingDelete {
		return ErrInvalidState
	}
	c.pending = nil
	c.state = StateIdle
	return nil
}

// ConfirmDelete deletes the pending item. The confirmation always closes
// and the list is always reloaded afterwards. When the delete failed and
// a fresh fetch still shows the item, the error is kept and the snapshot
// reports DeleteUnconfirmed.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateConfirmingDelete {
		busy := c.state == StateSubmitting || c.state == StateDeleting || c.state == StateLoading
		c.mu.Unlock()
		if busy {
			return ErrBusy
		}
		return ErrInvalidState
	}
	id := c.pending.ID
	c.state = StateDeleting
	c.loadGen++
	gen := c.loadGen
	c.mu.Unlock()

	var (
		items    []models.Item
		loadErr  error
		reloaded bool
	)
	delErr := c.res.Delete(ctx, id)
	if delErr != nil {
		res, rerr := c.rec.Reconcile(ctx, reconcile.Mutation{Op: reconcile.OpDelete, ID: id})
		if rerr == nil {
			items, reloaded = res.Refreshed, true
			if res.Confirmed {
				delErr = nil
			}
		}
	}
	if !reloaded {
		items, loadErr = c.res.List(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	c.state = StateIdle
	if gen == c.loadGen {
		c.applyLoad(items, loadErr)
	}
	if delErr != nil {
		c.err = delErr
		c.deleteUnconfirmed = true
		return delErr
	}
	if loadErr != nil {
		return loadErr
	}
	return nil
}

func (c *Controller) requireIdle() error {
	switch c.state {
	case StateIdle:
		return nil
	case StateLoading, StateSubmitting, StateDeleting:
		return ErrBusy
	default:
		return ErrInvalidState
	}
}

func (c *Controller) indexOf(id string) int {
	return slices.IndexFunc(c.items, func(it models.Item) bool { return it.ID == id })
}

// Snapshot is a point-in-time copy of the controller for rendering.
type Snapshot struct {
	State    State
	Items    []models.Item
	Filtered []models.Item
	Term     string
	// Form is the open form, nil when none. FormID is "" when adding.
	Form   *models.Item
	FormID string
	// PendingDelete is the item awaiting confirmation, nil when none.
	PendingDelete *models.Item
	// Error is the banner text; Err the underlying error.
	Error             string
	Err               error
	DeleteUnconfirmed bool
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:             c.state,
		Items:             cloneItems(c.items),
		Filtered:          cloneItems(c.filtered),
		Term:              c.term,
		FormID:            c.editID,
		Err:               c.err,
		DeleteUnconfirmed: c.deleteUnconfirmed,
	}
	if c.edit != nil {
		cp := c.edit.Clone()
		s.Form = &cp
	}
	if c.pending != nil {
		cp := c.pending.Clone()
		s.PendingDelete = &cp
	}
	if c.err != nil {
		s.Error = Message(c.err)
	}
	return s
}

// Message renders err the way the page banner shows it.
func Message(err error) string {
	var re *resource.Error
	if errors.As(err, &re) {
		return re.Message()
	}
	return err.Error()
}

func cloneItems(items []models.Item) []models.Item {
	out := make([]models.Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
