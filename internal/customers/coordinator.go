// Package customers coordinates the customer list: loading, refreshing,
// creating and dialing customers, and applying save/delete requests that
// other screens publish.
package customers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"customerterm/internal/events"
	"customerterm/internal/phone"
)

var (
	// ErrBusy is returned when another operation holds the coordinator.
	ErrBusy = errors.New("coordinator busy")
	// ErrUnavailable is returned when a required collaborator is missing.
	ErrUnavailable = errors.New("capability unavailable")
	// ErrMissingID is returned when deleting a customer without an ID.
	ErrMissingID = errors.New("customer id required")
)

// Phase names the operation currently holding the coordinator.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseRefreshing
	PhaseCreating
	PhaseSaving
	PhaseDeleting
	PhaseImporting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseCreating:
		return "creating"
	case PhaseSaving:
		return "saving"
	case PhaseDeleting:
		return "deleting"
	case PhaseImporting:
		return "importing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

const requestBuffer = 16

// Coordinator owns the customer list shown on screen. One operation runs at a
// time: Load, Refresh and Create give up with ErrBusy when the slot is taken,
// Save and Delete wait for it.
type Coordinator struct {
	source    DataSource
	navigator Navigator
	prompter  Prompter
	dialer    Dialer
	sanitize  func(string) string
	newID     func() string
	logger    *log.Logger

	slot chan struct{}

	mu        sync.RWMutex
	accounts  []Customer
	phase     Phase
	listeners []func(Phase)

	saves    *events.Bus[SaveRequest]
	deletes  *events.Bus[DeleteRequest]
	outcomes *events.Bus[Outcome]

	saveCh       <-chan SaveRequest
	deleteCh     <-chan DeleteRequest
	unsubscribes []func()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNavigator sets the navigator used by Create.
func WithNavigator(n Navigator) Option {
	return func(c *Coordinator) { c.navigator = n }
}

// WithPrompter sets the confirmation prompt used by Dial.
func WithPrompter(p Prompter) Option {
	return func(c *Coordinator) { c.prompter = p }
}

// WithDialer sets the phone dialer used by Dial.
func WithDialer(d Dialer) Option {
	return func(c *Coordinator) { c.dialer = d }
}

// WithSanitizer overrides how stored phone numbers are cleaned before dialing.
func WithSanitizer(fn func(string) string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.sanitize = fn
		}
	}
}

// WithLogger sets the logger for failed operations.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator builds a coordinator over source. Save and delete
// subscriptions are registered immediately so requests published before
// Listen starts are queued.
func NewCoordinator(source DataSource, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:   source,
		sanitize: phone.Sanitizer(phone.DefaultRegion),
		newID:    uuid.NewString,
		logger:   log.Default(),
		slot:     make(chan struct{}, 1),
		saves:    events.NewBus[SaveRequest](),
		deletes:  events.NewBus[DeleteRequest](),
		outcomes: events.NewBus[Outcome](),
	}
	for _, opt := range opts {
		opt(c)
	}
	var unsubSave, unsubDelete func()
	c.saveCh, unsubSave = c.saves.Subscribe(requestBuffer)
	c.deleteCh, unsubDelete = c.deletes.Subscribe(requestBuffer)
	c.unsubscribes = []func(){unsubSave, unsubDelete}
	return c
}

// Accounts returns a copy of the current list, or nil before the first load.
func (c *Coordinator) Accounts() []Customer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.accounts == nil {
		return nil
	}
	out := make([]Customer, len(c.accounts))
	copy(out, c.accounts)
	return out
}

// SetAccounts replaces the list wholesale.
func (c *Coordinator) SetAccounts(list []Customer) {
	next := make([]Customer, len(list))
	copy(next, list)
	c.mu.Lock()
	c.accounts = next
	c.mu.Unlock()
}

// Phase reports the operation in flight.
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Busy reports whether any operation is in flight.
func (c *Coordinator) Busy() bool {
	return c.Phase() != PhaseIdle
}

// OnChange registers fn to be called whenever the phase changes. Commands use
// it to refresh their enabled state.
func (c *Coordinator) OnChange(fn func(Phase)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	listeners := append([]func(Phase){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
}

func (c *Coordinator) tryAcquire(p Phase) bool {
	select {
	case c.slot <- struct{}{}:
		c.setPhase(p)
		return true
	default:
		return false
	}
}

func (c *Coordinator) acquire(ctx context.Context, p Phase) error {
	select {
	case c.slot <- struct{}{}:
		c.setPhase(p)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) release() {
	c.setPhase(PhaseIdle)
	<-c.slot
}

func (c *Coordinator) fetch(ctx context.Context) error {
	items, err := c.source.GetItems(ctx, 0, FetchLimit)
	if err != nil {
		return fmt.Errorf("fetch customers: %w", err)
	}
	c.SetAccounts(items)
	return nil
}

// Load fetches the list and replaces Accounts.
func (c *Coordinator) Load(ctx context.Context) error {
	return c.reload(ctx, PhaseLoading)
}

// Refresh behaves like Load; it is what the pull-to-refresh gesture calls.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.reload(ctx, PhaseRefreshing)
}

func (c *Coordinator) reload(ctx context.Context, p Phase) error {
	if !c.tryAcquire(p) {
		return ErrBusy
	}
	defer c.release()
	if err := c.fetch(ctx); err != nil {
		c.logger.Printf("%s: %v", p, err)
		return err
	}
	return nil
}

// Create pushes an empty detail screen. The slot is only held while pushing.
func (c *Coordinator) Create(ctx context.Context) error {
	if !c.tryAcquire(PhaseCreating) {
		return ErrBusy
	}
	defer c.release()
	if c.navigator == nil {
		return fmt.Errorf("navigate: %w", ErrUnavailable)
	}
	if err := c.navigator.Push(ctx, DetailScreen{}); err != nil {
		return fmt.Errorf("push detail screen: %w", err)
	}
	return nil
}

// Find returns the first customer in Accounts with the given ID.
func (c *Coordinator) Find(id string) (Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cust := range c.accounts {
		if cust.ID == id {
			return cust, true
		}
	}
	return Customer{}, false
}

// Dial asks the user to confirm and then calls the customer. It reports
// whether a call was handed to the dialer. Unknown or blank IDs do nothing.
func (c *Coordinator) Dial(ctx context.Context, customerID string) (bool, error) {
	if strings.TrimSpace(customerID) == "" {
		return false, nil
	}
	cust, ok := c.Find(customerID)
	if !ok {
		return false, nil
	}
	if c.prompter == nil {
		return false, fmt.Errorf("confirm call: %w", ErrUnavailable)
	}
	confirmed, err := c.prompter.Confirm(ctx, Prompt{
		Title:  fmt.Sprintf("Would you like to call %s?", cust.DisplayName),
		Accept: "Call",
		Cancel: "Cancel",
	})
	if err != nil {
		return false, fmt.Errorf("confirm call: %w", err)
	}
	if !confirmed || c.dialer == nil || !c.dialer.CanDial() {
		return false, nil
	}
	if err := c.dialer.Dial(ctx, c.sanitize(cust.Phone)); err != nil {
		return false, fmt.Errorf("dial %s: %w", cust.DisplayName, err)
	}
	return true, nil
}

// Save inserts cust when it has no ID (assigning one and the placeholder
// photo) or updates it otherwise, then reloads the list.
func (c *Coordinator) Save(ctx context.Context, cust Customer) (Outcome, error) {
	out := Outcome{Kind: Updated}
	if err := c.acquire(ctx, PhaseSaving); err != nil {
		out.Customer, out.Err = cust, err
		return out, err
	}
	defer c.release()

	if cust.IsNew() {
		cust.ID = c.newID()
		cust.PhotoURL = PlaceholderPhoto
		out.Kind = Created
	}
	if err := c.source.SaveItem(ctx, &cust); err != nil {
		err = fmt.Errorf("save customer: %w", err)
		out.Customer, out.Err = cust, err
		return out, err
	}
	out.Customer = cust
	if err := c.fetch(ctx); err != nil {
		out.Err = err
		return out, err
	}
	return out, nil
}

// Delete removes cust and reloads the list.
func (c *Coordinator) Delete(ctx context.Context, cust Customer) (Outcome, error) {
	out := Outcome{Kind: Deleted, Customer: cust}
	if cust.IsNew() {
		out.Err = ErrMissingID
		return out, ErrMissingID
	}
	if err := c.acquire(ctx, PhaseDeleting); err != nil {
		out.Err = err
		return out, err
	}
	defer c.release()

	if err := c.source.DeleteItem(ctx, cust.ID); err != nil {
		out.Err = fmt.Errorf("delete customer: %w", err)
		return out, out.Err
	}
	if err := c.fetch(ctx); err != nil {
		out.Err = err
		return out, err
	}
	return out, nil
}

// Import runs a bulk write such as a CSV import while holding the slot, then
// reloads the list. Like Save it waits for the slot.
func (c *Coordinator) Import(ctx context.Context, write func(context.Context) error) error {
	if err := c.acquire(ctx, PhaseImporting); err != nil {
		return err
	}
	defer c.release()

	if err := write(ctx); err != nil {
		c.logger.Printf("%s: %v", PhaseImporting, err)
		return err
	}
	return c.fetch(ctx)
}

// PublishSave queues a save request for Listen.
func (c *Coordinator) PublishSave(ctx context.Context, cust Customer) error {
	return c.saves.Publish(ctx, SaveRequest{Customer: cust})
}

// PublishDelete queues a delete request for Listen.
func (c *Coordinator) PublishDelete(ctx context.Context, cust Customer) error {
	return c.deletes.Publish(ctx, DeleteRequest{Customer: cust})
}

// Outcomes subscribes to the results of processed requests.
func (c *Coordinator) Outcomes(buffer int) (<-chan Outcome, func()) {
	return c.outcomes.Subscribe(buffer)
}

// Listen applies queued save and delete requests until ctx is done or the
// coordinator is closed.
func (c *Coordinator) Listen(ctx context.Context) error {
	saveCh, deleteCh := c.saveCh, c.deleteCh
	for saveCh != nil || deleteCh != nil {
		var out Outcome
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-saveCh:
			if !ok {
				saveCh = nil
				continue
			}
			out, _ = c.Save(ctx, req.Customer)
		case req, ok := <-deleteCh:
			if !ok {
				deleteCh = nil
				continue
			}
			out, _ = c.Delete(ctx, req.Customer)
		}
		if out.Err != nil {
			c.logger.Printf("%s %q: %v", out.Kind, out.Customer.DisplayName, out.Err)
		}
		if err := c.outcomes.Publish(ctx, out); err != nil && !errors.Is(err, events.ErrClosed) {
			return err
		}
	}
	return nil
}

// Close drops the save and delete subscriptions and ends Listen.
func (c *Coordinator) Close() {
	for _, unsub := range c.unsubscribes {
		unsub()
	}
	c.saves.Close()
	c.deletes.Close()
	c.outcomes.Close()
}
