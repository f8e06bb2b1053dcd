package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/engine"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =========================
// Fakes
// =========================

type fakeStore struct {
	orders     map[string]engine.Order
	milestones map[string]*engine.Milestone
	usage      map[string]engine.UsageState
	orderErr   error // injected failure for order status writes
	msErr      error // injected failure for milestone status writes
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:     make(map[string]engine.Order),
		milestones: make(map[string]*engine.Milestone),
		usage:      make(map[string]engine.UsageState),
	}
}

func (s *fakeStore) GetOrder(_ context.Context, id string) (engine.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	return o, nil
}

func (s *fakeStore) GetMilestone(_ context.Context, id string) (*engine.Milestone, error) {
	m, ok := s.milestones[id]
	if !ok {
		return nil, errors.New("milestone not found")
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) UpdateOrderStatus(_ context.Context, id string, from, to engine.Status, patch engine.StatusPatch) error {
	if s.orderErr != nil {
		return s.orderErr
	}
	o, ok := s.orders[id]
	if !ok {
		return errors.New("order not found")
	}
	core := o.Core()
	if core.Status != from {
		return engine.ErrConflict
	}
	core.Status = to
	applyPatch(core, patch)
	return nil
}

func (s *fakeStore) UpdateMilestoneStatus(_ context.Context, id string, from, to engine.Status, patch engine.StatusPatch) error {
	if s.msErr != nil {
		return s.msErr
	}
	m, ok := s.milestones[id]
	if !ok {
		return errors.New("milestone not found")
	}
	if m.Status != from {
		return engine.ErrConflict
	}
	m.Status = to
	if patch.DeliverableURL != nil {
		m.DeliverableURL = *patch.DeliverableURL
	}
	// Keep the parent's milestone slice in sync the way a reload would.
	if parent, ok := s.orders[m.OrderID].(*engine.MilestoneOrder); ok {
		for i := range parent.Milestones {
			if parent.Milestones[i].ID == id {
				parent.Milestones[i] = *m
			}
		}
	}
	return nil
}

func (s *fakeStore) SetContractUsage(_ context.Context, orderID string, state engine.UsageState) error {
	s.usage[orderID] = state
	return nil
}

func applyPatch(core *engine.OrderCore, patch engine.StatusPatch) {
	if patch.DeliverableURL != nil {
		core.DeliverableURL = *patch.DeliverableURL
	}
	if patch.ReviewScore != nil {
		core.ReviewScore = patch.ReviewScore
	}
	if patch.ReviewText != nil {
		core.ReviewText = *patch.ReviewText
	}
	if patch.Tip != nil {
		core.Tip = *patch.Tip
	}
}

type release struct {
	account   string
	amount    decimal.Decimal
	reference string
}

type fakeGateway struct {
	releases []release
	err      error
}

func (g *fakeGateway) ReleasePayment(_ context.Context, accountID string, amount decimal.Decimal, ref string) error {
	if g.err != nil {
		return g.err
	}
	g.releases = append(g.releases, release{account: accountID, amount: amount, reference: ref})
	return nil
}

type fakeFiles struct {
	uploads []string
	err     error
}

func (f *fakeFiles) Upload(_ context.Context, objectPath string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, objectPath)
	return "https://cdn.example.test/" + objectPath, nil
}

type notice struct {
	from, to, event string
}

type fakeNotifier struct {
	notices []notice
	err     error
}

func (n *fakeNotifier) Notify(_ context.Context, from, to, event, _, _ string) error {
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice{from: from, to: to, event: event})
	return nil
}

type harness struct {
	store    *fakeStore
	gateway  *fakeGateway
	files    *fakeFiles
	notifier *fakeNotifier
	eng      *engine.Engine
}

func newHarness() *harness {
	h := &harness{
		store:    newFakeStore(),
		gateway:  &fakeGateway{},
		files:    &fakeFiles{},
		notifier: &fakeNotifier{},
	}
	h.eng = engine.New(h.store, h.gateway, h.files, h.notifier)
	return h
}

func directOrder(id string, status engine.Status, amount string) *engine.DirectOrder {
	return &engine.DirectOrder{
		OrderCore: engine.OrderCore{
			ID:                id,
			ClientID:          "client-1",
			ProviderID:        "provider-1",
			ProviderAccountID: "acct_provider_1",
			ConversationID:    "conv-1",
			Title:             "Logo design",
			Amount:            d(amount),
			Status:            status,
			CreatedAt:         time.Now(),
		},
		PriceType: engine.PriceFixed,
	}
}

var (
	client   = engine.ActorContext{UserID: "client-1", Role: "client"}
	provider = engine.ActorContext{UserID: "provider-1", Role: "provider"}
	pdfFile  = engine.File{Name: "final.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7")}
)

// =========================
// Offer accept / reject
// =========================

func TestAcceptOffer(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusPending, "100")

	o, err := h.eng.AcceptOffer(context.Background(), provider, "o1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusAccepted, o.Core().Status)
	assert.Equal(t, engine.UsagePending, h.store.usage["o1"])
	require.Len(t, h.notifier.notices, 1)
	assert.Equal(t, "offer:accepted", h.notifier.notices[0].event)
	assert.Equal(t, "client-1", h.notifier.notices[0].to)
}

func TestAcceptOfferWrongActor(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusPending, "100")

	_, err := h.eng.AcceptOffer(context.Background(), client, "o1")
	assert.ErrorIs(t, err, engine.ErrForbidden)
}

func TestAcceptOfferOutOfOrderIsRejected(t *testing.T) {
	// Re-firing accept on an order past Pending must not overwrite the
	// state or send a duplicate notification.
	for _, status := range []engine.Status{engine.StatusAccepted, engine.StatusSubmitted, engine.StatusApproved} {
		h := newHarness()
		h.store.orders["o1"] = directOrder("o1", status, "100")

		_, err := h.eng.AcceptOffer(context.Background(), provider, "o1")
		assert.ErrorIs(t, err, engine.ErrConflict, "status %s", status)
		assert.Equal(t, status, h.store.orders["o1"].Core().Status)
		assert.Empty(t, h.notifier.notices)
	}
}

func TestRejectOffer(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusPending, "100")

	o, err := h.eng.RejectOffer(context.Background(), provider, "o1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusRejected, o.Core().Status)
	assert.Equal(t, engine.UsageRejected, h.store.usage["o1"])

	// A rejected order can never take a deliverable.
	_, err = h.eng.SubmitDeliverable(context.Background(), provider, "o1", pdfFile)
	assert.ErrorIs(t, err, engine.ErrConflict)
	assert.Empty(t, h.files.uploads)
}

// =========================
// Submit deliverable
// =========================

func TestSubmitDeliverable(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusAccepted, "100")

	url, err := h.eng.SubmitDeliverable(context.Background(), provider, "o1", pdfFile)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.test/deliverables/o1/final.pdf", url)
	core := h.store.orders["o1"].Core()
	assert.Equal(t, engine.StatusSubmitted, core.Status)
	assert.Equal(t, url, core.DeliverableURL)
}

func TestSubmitDeliverableUploadFailureKeepsStatus(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusAccepted, "100")
	h.files.err = errors.New("bucket unavailable")

	_, err := h.eng.SubmitDeliverable(context.Background(), provider, "o1", pdfFile)
	var uploadErr *engine.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, engine.StatusAccepted, h.store.orders["o1"].Core().Status)
	assert.Empty(t, h.notifier.notices)
}

func TestSubmitDeliverablePersistFailureKeepsStatus(t *testing.T) {
	// Upload succeeded, ledger write failed: file is orphaned but the
	// order stays Accepted so the provider can retry.
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusAccepted, "100")
	h.store.orderErr = errors.New("connection reset")

	_, err := h.eng.SubmitDeliverable(context.Background(), provider, "o1", pdfFile)
	var persistErr *engine.PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Len(t, h.files.uploads, 1)
	assert.Equal(t, engine.StatusAccepted, h.store.orders["o1"].Core().Status)
}

func TestSubmitDeliverableRequiresFile(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusAccepted, "100")

	_, err := h.eng.SubmitDeliverable(context.Background(), provider, "o1", engine.File{})
	var vErr *engine.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, h.files.uploads)
}

// =========================
// Approve work
// =========================

func TestApproveWorkNoPaymentNoApproval(t *testing.T) {
	// Approved must never be persisted unless the release succeeded.
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusSubmitted, "100")
	h.gateway.err = errors.New("card network timeout")

	_, err := h.eng.ApproveWork(context.Background(), client, "o1", engine.Review{Score: 5, Text: "great"}, nil)
	var payErr *engine.PaymentReleaseError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, engine.StatusSubmitted, h.store.orders["o1"].Core().Status)
	assert.Empty(t, h.notifier.notices)
}

func TestApproveWorkPersistFailureAfterRelease(t *testing.T) {
	// The one accepted reconciliation gap: money moved, status lags.
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusSubmitted, "100")
	h.store.orderErr = errors.New("connection reset")

	_, err := h.eng.ApproveWork(context.Background(), client, "o1", engine.Review{Score: 5, Text: "great"}, nil)
	var persistErr *engine.PersistError
	require.ErrorAs(t, err, &persistErr)
	require.Len(t, h.gateway.releases, 1)
	assert.Equal(t, engine.StatusSubmitted, h.store.orders["o1"].Core().Status)
}

func TestApproveWorkValidation(t *testing.T) {
	tests := []struct {
		name   string
		review engine.Review
		tip    *decimal.Decimal
	}{
		{"missing text", engine.Review{Score: 4}, nil},
		{"score above range", engine.Review{Score: 5.5, Text: "ok"}, nil},
		{"score not half-point", engine.Review{Score: 4.3, Text: "ok"}, nil},
		{"zero tip", engine.Review{Score: 4, Text: "ok"}, ptr(d("0"))},
		{"negative tip", engine.Review{Score: 4, Text: "ok"}, ptr(d("-5"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.store.orders["o1"] = directOrder("o1", engine.StatusSubmitted, "100")

			_, err := h.eng.ApproveWork(context.Background(), client, "o1", tt.review, tt.tip)
			var vErr *engine.ValidationError
			require.ErrorAs(t, err, &vErr)
			// Aborted before any side effect.
			assert.Empty(t, h.gateway.releases)
			assert.Equal(t, engine.StatusSubmitted, h.store.orders["o1"].Core().Status)
		})
	}
}

func TestApproveWorkWrongActor(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusSubmitted, "100")

	_, err := h.eng.ApproveWork(context.Background(), provider, "o1", engine.Review{Score: 5, Text: "great"}, nil)
	assert.ErrorIs(t, err, engine.ErrForbidden)
	assert.Empty(t, h.gateway.releases)
}

func TestDirectOrderRoundTrip(t *testing.T) {
	// Pending -> Accepted -> Submitted -> Approved with a $100 price and
	// a $10 tip: the gateway must see exactly $110.
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusPending, "100")

	_, err := h.eng.AcceptOffer(context.Background(), provider, "o1")
	require.NoError(t, err)

	url, err := h.eng.SubmitDeliverable(context.Background(), provider, "o1", pdfFile)
	require.NoError(t, err)
	require.NotEmpty(t, url)

	tip := d("10")
	o, err := h.eng.ApproveWork(context.Background(), client, "o1", engine.Review{Score: 4.5, Text: "solid work"}, &tip)
	require.NoError(t, err)

	core := o.Core()
	assert.Equal(t, engine.StatusApproved, core.Status)
	require.NotNil(t, core.ReviewScore)
	assert.Equal(t, 4.5, *core.ReviewScore)
	assert.Equal(t, "solid work", core.ReviewText)
	assert.True(t, core.Tip.Equal(d("10")))
	assert.NotEmpty(t, core.DeliverableURL)

	require.Len(t, h.gateway.releases, 1)
	assert.True(t, h.gateway.releases[0].amount.Equal(d("110")),
		"gateway got %s, want 110", h.gateway.releases[0].amount)
	assert.Equal(t, "acct_provider_1", h.gateway.releases[0].account)
	assert.Equal(t, engine.UsageCompleted, h.store.usage["o1"])
}

func TestApproveServiceOrderPaysRecomputedTotal(t *testing.T) {
	h := newHarness()
	h.store.orders["s1"] = &engine.ServiceOrder{
		OrderCore: engine.OrderCore{
			ID: "s1", ClientID: "client-1", ProviderID: "provider-1",
			ProviderAccountID: "acct_provider_1", Title: "Brand kit",
			Amount: d("200"), Status: engine.StatusSubmitted,
		},
		PackageName: "Brand Kit Pro",
		AddOns: []engine.AddOn{
			{Name: "Rush delivery", Price: d("50"), Enabled: true},
			{Name: "Source files", Price: d("30"), Enabled: false},
		},
	}

	_, err := h.eng.ApproveWork(context.Background(), client, "s1", engine.Review{Score: 5, Text: "perfect"}, nil)
	require.NoError(t, err)
	require.Len(t, h.gateway.releases, 1)
	assert.True(t, h.gateway.releases[0].amount.Equal(d("250")))
}

// =========================
// Milestones
// =========================

func milestoneOrder(h *harness, statuses ...engine.Status) *engine.MilestoneOrder {
	mo := &engine.MilestoneOrder{
		OrderCore: engine.OrderCore{
			ID: "m-order", ClientID: "client-1", ProviderID: "provider-1",
			ProviderAccountID: "acct_provider_1", Title: "Site redesign",
			Amount: d("300"), Status: engine.StatusAccepted,
		},
	}
	for i, st := range statuses {
		m := engine.Milestone{
			ID: "ms-" + string(rune('a'+i)), OrderID: "m-order",
			Title: "Phase " + string(rune('1'+i)), Amount: d("100"), Status: st,
		}
		mo.Milestones = append(mo.Milestones, m)
		cp := m
		h.store.milestones[m.ID] = &cp
	}
	h.store.orders["m-order"] = mo
	return mo
}

func TestSubmitAndApproveMilestone(t *testing.T) {
	h := newHarness()
	milestoneOrder(h, engine.StatusPending, engine.StatusPending)

	url, err := h.eng.SubmitMilestone(context.Background(), provider, "ms-a", pdfFile)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, engine.StatusSubmitted, h.store.milestones["ms-a"].Status)

	m, err := h.eng.ApproveMilestone(context.Background(), client, "ms-a")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusApproved, m.Status)
	require.Len(t, h.gateway.releases, 1)
	assert.True(t, h.gateway.releases[0].amount.Equal(d("100")))
	assert.Equal(t, "ms-a", h.gateway.releases[0].reference)
}

func TestApproveMilestoneGatewayFailure(t *testing.T) {
	h := newHarness()
	milestoneOrder(h, engine.StatusSubmitted)
	h.gateway.err = errors.New("transfer declined")

	_, err := h.eng.ApproveMilestone(context.Background(), client, "ms-a")
	var payErr *engine.PaymentReleaseError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, engine.StatusSubmitted, h.store.milestones["ms-a"].Status)
}

func TestCompleteProjectRequiresAllMilestonesApproved(t *testing.T) {
	// 3 milestones, 2 approved and 1 still submitted: completion is a
	// rejected call, not a silent finalize.
	h := newHarness()
	milestoneOrder(h, engine.StatusApproved, engine.StatusApproved, engine.StatusSubmitted)

	_, err := h.eng.CompleteProject(context.Background(), client, "m-order", engine.Review{Score: 5, Text: "great"}, nil)
	assert.ErrorIs(t, err, engine.ErrConflict)
	assert.Equal(t, engine.StatusAccepted, h.store.orders["m-order"].Core().Status)
	assert.Empty(t, h.gateway.releases)
}

func TestCompleteProjectReleasesTipOnly(t *testing.T) {
	// Milestone amounts were paid per approval; completion moves the tip
	// and persists the parent review.
	h := newHarness()
	milestoneOrder(h, engine.StatusApproved, engine.StatusApproved)

	tip := d("25")
	o, err := h.eng.CompleteProject(context.Background(), client, "m-order", engine.Review{Score: 4.5, Text: "smooth"}, &tip)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusApproved, o.Core().Status)
	require.Len(t, h.gateway.releases, 1)
	assert.True(t, h.gateway.releases[0].amount.Equal(d("25")))
	assert.Equal(t, engine.UsageCompleted, h.store.usage["m-order"])
}

func TestMilestoneParentRejectsDirectLifecycle(t *testing.T) {
	// The parent of a milestone order never takes a deliverable or an
	// approval of its own; work and money move through the milestones.
	// Otherwise a parent could reach Approved with every milestone still
	// Pending and only a tip released.
	h := newHarness()
	milestoneOrder(h, engine.StatusPending, engine.StatusPending)

	_, err := h.eng.SubmitDeliverable(context.Background(), provider, "m-order", pdfFile)
	var vErr *engine.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, h.files.uploads)
	assert.Equal(t, engine.StatusAccepted, h.store.orders["m-order"].Core().Status)

	// Even with the parent row forced to Submitted, approval stays closed.
	h.store.orders["m-order"].Core().Status = engine.StatusSubmitted
	tip := d("5")
	_, err = h.eng.ApproveWork(context.Background(), client, "m-order", engine.Review{Score: 5, Text: "great"}, &tip)
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, h.gateway.releases)
	assert.Equal(t, engine.StatusSubmitted, h.store.orders["m-order"].Core().Status)
	assert.NotEqual(t, engine.UsageCompleted, h.store.usage["m-order"])
}

func TestCompleteProjectOnDirectOrder(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusSubmitted, "100")

	_, err := h.eng.CompleteProject(context.Background(), client, "o1", engine.Review{Score: 5, Text: "ok"}, nil)
	var vErr *engine.ValidationError
	require.ErrorAs(t, err, &vErr)
}

// =========================
// Notification failures never block
// =========================

func TestNotifierFailureDoesNotBlockTransition(t *testing.T) {
	h := newHarness()
	h.store.orders["o1"] = directOrder("o1", engine.StatusPending, "100")
	h.notifier.err = errors.New("smtp down")

	o, err := h.eng.AcceptOffer(context.Background(), provider, "o1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusAccepted, o.Core().Status)
}

func ptr[T any](v T) *T { return &v }
