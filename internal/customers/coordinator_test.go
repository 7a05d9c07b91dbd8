package customers

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	mu        sync.Mutex
	items     map[string]Customer
	gets      int
	saved     []Customer
	deleted   []string
	getErr    error
	saveErr   error
	deleteErr error
	block     chan struct{}
	entered   chan struct{}
}

func newMemSource(items ...Customer) *memSource {
	s := &memSource{items: map[string]Customer{}}
	for _, c := range items {
		s.items[c.ID] = c
	}
	return s
}

func (s *memSource) GetItems(ctx context.Context, offset, limit int) ([]Customer, error) {
	s.mu.Lock()
	s.gets++
	block, entered := s.block, s.entered
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make([]Customer, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	if offset > len(out) {
		return []Customer{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memSource) SaveItem(_ context.Context, c *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, *c)
	s.items[c.ID] = *c
	return nil
}

func (s *memSource) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	delete(s.items, id)
	return nil
}

func (s *memSource) setGetErr(err error) {
	s.mu.Lock()
	s.getErr = err
	s.mu.Unlock()
}

func (s *memSource) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *memSource) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

type fakeNavigator struct {
	pushed []DetailScreen
	err    error
}

func (n *fakeNavigator) Push(_ context.Context, s DetailScreen) error {
	n.pushed = append(n.pushed, s)
	return n.err
}

type fakePrompter struct {
	answer  bool
	prompts []Prompt
}

func (p *fakePrompter) Confirm(_ context.Context, pr Prompt) (bool, error) {
	p.prompts = append(p.prompts, pr)
	return p.answer, nil
}

type fakeDialer struct {
	supported bool
	dialed    []string
}

func (d *fakeDialer) CanDial() bool { return d.supported }

func (d *fakeDialer) Dial(_ context.Context, number string) error {
	d.dialed = append(d.dialed, number)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var (
	ada   = Customer{ID: "a1", DisplayName: "Ada Lovelace", Phone: "(650) 253-0000"}
	grace = Customer{ID: "g1", DisplayName: "Grace Hopper", Phone: "+41 44 668 1800"}
)

// holdSlot blocks the source inside a Load so the coordinator stays busy.
func holdSlot(t *testing.T, c *Coordinator, src *memSource) (release func()) {
	t.Helper()
	src.mu.Lock()
	src.block = make(chan struct{})
	src.entered = make(chan struct{}, 1)
	block, entered := src.block, src.entered
	src.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("load never reached the data source")
	}
	return func() {
		src.mu.Lock()
		src.block, src.entered = nil, nil
		src.mu.Unlock()
		close(block)
		if err := <-done; err != nil {
			t.Fatalf("held load: %v", err)
		}
	}
}

func TestAccountsNilBeforeLoad(t *testing.T) {
	c := NewCoordinator(newMemSource(), WithLogger(quietLogger()))
	require.Nil(t, c.Accounts(), "accounts should be unset before first load")
	require.NoError(t, c.Load(context.Background()))
	got := c.Accounts()
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestLoadReplacesAccountsInOrder(t *testing.T) {
	src := newMemSource(grace, ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))
	var phases []Phase
	c.OnChange(func(p Phase) { phases = append(phases, p) })

	require.NoError(t, c.Load(context.Background()))
	got := c.Accounts()
	require.Len(t, got, 2)
	require.Equal(t, ada.ID, got[0].ID)
	require.Equal(t, grace.ID, got[1].ID)
	require.Equal(t, []Phase{PhaseLoading, PhaseIdle}, phases)
	require.False(t, c.Busy())
}

func TestLoadWhileBusyReturnsErrBusy(t *testing.T) {
	src := newMemSource(ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))
	release := holdSlot(t, c, src)

	before := src.getCount()
	require.ErrorIs(t, c.Load(context.Background()), ErrBusy)
	require.Equal(t, before, src.getCount(), "load while busy called the data source")
	require.Equal(t, PhaseLoading, c.Phase(), "second load replaced the running phase")
	release()
	require.False(t, c.Busy())
}

func TestRefreshWhileBusyIsNoop(t *testing.T) {
	src := newMemSource(ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))
	release := holdSlot(t, c, src)

	before := src.getCount()
	require.ErrorIs(t, c.Refresh(context.Background()), ErrBusy)
	require.Equal(t, before, src.getCount(), "refresh while busy called the data source")
	require.Nil(t, c.Accounts(), "refresh while busy changed accounts")
	release()

	require.NoError(t, c.Refresh(context.Background()))
	require.Len(t, c.Accounts(), 1)
}

func TestCreatePushesDetailScreen(t *testing.T) {
	nav := &fakeNavigator{}
	src := newMemSource()
	c := NewCoordinator(src, WithNavigator(nav), WithLogger(quietLogger()))

	require.NoError(t, c.Create(context.Background()))
	require.Len(t, nav.pushed, 1)
	require.False(t, nav.pushed[0].Editing())
	require.False(t, c.Busy(), "busy should clear once the screen is pushed")

	release := holdSlot(t, c, src)
	require.ErrorIs(t, c.Create(context.Background()), ErrBusy)
	release()
	require.Len(t, nav.pushed, 1, "create while busy pushed a screen")
}

func TestCreateWithoutNavigator(t *testing.T) {
	c := NewCoordinator(newMemSource(), WithLogger(quietLogger()))
	require.ErrorIs(t, c.Create(context.Background()), ErrUnavailable)
	require.False(t, c.Busy(), "busy left set after failure")
}

func TestSaveNewCustomerAssignsIDAndPlaceholder(t *testing.T) {
	src := newMemSource(ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))

	out, err := c.Save(context.Background(), Customer{DisplayName: "Barbara Liskov", PhotoURL: "mine.png"})
	require.NoError(t, err)
	require.Equal(t, Created, out.Kind)
	_, err = uuid.Parse(out.Customer.ID)
	require.NoError(t, err, "id %q is not a uuid", out.Customer.ID)
	require.Equal(t, PlaceholderPhoto, out.Customer.PhotoURL)
	require.Len(t, src.saved, 1)
	require.Equal(t, out.Customer.ID, src.saved[0].ID)
	_, ok := c.Find(out.Customer.ID)
	require.True(t, ok, "new customer missing from refetched accounts")
}

func TestSaveExistingCustomerKeepsID(t *testing.T) {
	src := newMemSource(ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))

	edited := ada
	edited.DisplayName = "Augusta Ada King"
	out, err := c.Save(context.Background(), edited)
	require.NoError(t, err)
	require.Equal(t, Updated, out.Kind)
	require.Equal(t, ada.ID, out.Customer.ID)
	require.Empty(t, out.Customer.PhotoURL, "update should not touch photo")
	got, _ := c.Find(ada.ID)
	require.Equal(t, "Augusta Ada King", got.DisplayName)
}

func TestSaveFailureReleasesSlot(t *testing.T) {
	src := newMemSource()
	src.saveErr = errors.New("disk full")
	c := NewCoordinator(src, WithLogger(quietLogger()))

	out, err := c.Save(context.Background(), Customer{DisplayName: "X"})
	require.Error(t, err)
	require.Error(t, out.Err)
	require.False(t, c.Busy(), "busy left set after failed save")
	require.Zero(t, src.getCount(), "failed save should not refetch")
}

func TestLoadFailureReleasesSlot(t *testing.T) {
	src := newMemSource(ada)
	src.getErr = errors.New("locked")
	c := NewCoordinator(src, WithLogger(quietLogger()))
	require.Error(t, c.Load(context.Background()))
	require.False(t, c.Busy(), "busy left set after failed load")
	require.Nil(t, c.Accounts(), "failed load should not set accounts")
}

func TestDeleteRemovesCustomer(t *testing.T) {
	src := newMemSource(ada, grace)
	c := NewCoordinator(src, WithLogger(quietLogger()))
	require.NoError(t, c.Load(context.Background()))

	out, err := c.Delete(context.Background(), ada)
	require.NoError(t, err)
	require.Equal(t, Deleted, out.Kind)
	_, ok := c.Find(ada.ID)
	require.False(t, ok, "deleted customer still listed")

	_, err = c.Delete(context.Background(), Customer{})
	require.ErrorIs(t, err, ErrMissingID)
}

func TestDeleteFailureReleasesSlot(t *testing.T) {
	src := newMemSource(ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))
	require.NoError(t, c.Load(context.Background()))

	src.deleteErr = errors.New("read-only")
	out, err := c.Delete(context.Background(), ada)
	require.Error(t, err)
	require.ErrorIs(t, out.Err, src.deleteErr)
	require.False(t, c.Busy(), "busy left set after failed delete")
	require.Equal(t, 1, src.getCount(), "failed delete should not refetch")

	src.deleteErr = nil
	src.setGetErr(errors.New("locked"))
	out, err = c.Delete(context.Background(), ada)
	require.Error(t, err)
	require.Error(t, out.Err)
	require.False(t, c.Busy(), "busy left set after failed refetch")
	require.Len(t, c.Accounts(), 1, "failed refetch should keep the previous list")
}

func TestImportHoldsSlotAndReloads(t *testing.T) {
	src := newMemSource(ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))
	release := holdSlot(t, c, src)

	done := make(chan error, 1)
	go func() {
		done <- c.Import(context.Background(), func(ctx context.Context) error {
			return src.SaveItem(ctx, &Customer{ID: "imp", DisplayName: "Imported"})
		})
	}()
	select {
	case <-done:
		t.Fatal("import ran while slot was held")
	case <-time.After(30 * time.Millisecond):
	}
	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("import never ran")
	}
	_, ok := c.Find("imp")
	require.True(t, ok, "imported customer missing from reloaded list")
	require.False(t, c.Busy())

	err := c.Import(context.Background(), func(context.Context) error { return errors.New("bad header") })
	require.Error(t, err)
	require.False(t, c.Busy(), "busy left set after failed import")
}

func TestSaveWaitsForBusySlot(t *testing.T) {
	src := newMemSource(ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))
	release := holdSlot(t, c, src)

	done := make(chan Outcome, 1)
	go func() {
		out, _ := c.Save(context.Background(), Customer{DisplayName: "Waiter"})
		done <- out
	}()
	select {
	case <-done:
		t.Fatal("save ran while slot was held")
	case <-time.After(30 * time.Millisecond):
	}
	release()
	select {
	case out := <-done:
		require.NoError(t, out.Err)
		require.Equal(t, Created, out.Kind)
	case <-time.After(time.Second):
		t.Fatal("save never ran")
	}
}

func TestDialFlow(t *testing.T) {
	src := newMemSource(ada, grace)
	prompter := &fakePrompter{answer: true}
	dialer := &fakeDialer{supported: true}
	c := NewCoordinator(src, WithPrompter(prompter), WithDialer(dialer), WithLogger(quietLogger()))
	require.NoError(t, c.Load(context.Background()))
	ctx := context.Background()

	for _, id := range []string{"", "   ", "missing"} {
		dialed, err := c.Dial(ctx, id)
		require.NoError(t, err)
		require.False(t, dialed, "Dial(%q)", id)
	}
	require.Empty(t, prompter.prompts, "unknown or blank ids must not prompt")
	require.Empty(t, dialer.dialed, "unknown or blank ids must not dial")

	dialed, err := c.Dial(ctx, ada.ID)
	require.NoError(t, err)
	require.True(t, dialed)
	require.Equal(t, []Prompt{{Title: "Would you like to call Ada Lovelace?", Accept: "Call", Cancel: "Cancel"}}, prompter.prompts)
	require.Equal(t, []string{"+16502530000"}, dialer.dialed)

	prompter.answer = false
	dialed, _ = c.Dial(ctx, grace.ID)
	require.False(t, dialed, "declined prompt should not dial")
	require.Len(t, dialer.dialed, 1)

	prompter.answer = true
	dialer.supported = false
	dialed, _ = c.Dial(ctx, grace.ID)
	require.False(t, dialed, "unsupported dialer should not dial")
}

func TestDialPicksFirstDuplicate(t *testing.T) {
	dialer := &fakeDialer{supported: true}
	c := NewCoordinator(newMemSource(), WithPrompter(&fakePrompter{answer: true}), WithDialer(dialer),
		WithSanitizer(func(s string) string { return s }), WithLogger(quietLogger()))
	c.SetAccounts([]Customer{
		{ID: "dup", DisplayName: "First", Phone: "111"},
		{ID: "dup", DisplayName: "Second", Phone: "222"},
	})
	_, err := c.Dial(context.Background(), "dup")
	require.NoError(t, err)
	require.Equal(t, []string{"111"}, dialer.dialed)
}

func TestListenAppliesPublishedRequests(t *testing.T) {
	src := newMemSource(ada)
	c := NewCoordinator(src, WithLogger(quietLogger()))
	outcomes, cancel := c.Outcomes(4)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	listenErr := make(chan error, 1)
	go func() { listenErr <- c.Listen(ctx) }()

	require.NoError(t, c.PublishSave(ctx, Customer{DisplayName: "Radia Perlman"}))
	created := waitOutcome(t, outcomes)
	require.Equal(t, Created, created.Kind)
	require.NoError(t, created.Err)

	require.NoError(t, c.PublishDelete(ctx, ada))
	deleted := waitOutcome(t, outcomes)
	require.Equal(t, Deleted, deleted.Kind)
	require.NoError(t, deleted.Err)

	accounts := c.Accounts()
	require.Len(t, accounts, 1)
	require.Equal(t, created.Customer.ID, accounts[0].ID)

	c.Close()
	select {
	case err := <-listenErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listen did not stop after Close")
	}
}

func TestCloseWithUndrainedOutcomes(t *testing.T) {
	src := newMemSource()
	c := NewCoordinator(src, WithLogger(quietLogger()))
	_, cancel := c.Outcomes(0)
	defer cancel()

	listenErr := make(chan error, 1)
	go func() { listenErr <- c.Listen(context.Background()) }()
	require.NoError(t, c.PublishSave(context.Background(), Customer{DisplayName: "Unread"}))
	require.Eventually(t, func() bool { return src.savedCount() == 1 && !c.Busy() },
		time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked while Listen waited on an undrained outcome subscriber")
	}
	select {
	case err := <-listenErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listen did not stop after Close")
	}
}

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(time.Second):
		t.Fatal("no outcome published")
		return Outcome{}
	}
}
