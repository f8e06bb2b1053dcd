// Package engine owns the order/offer lifecycle: it validates and
// applies state transitions for direct orders, milestone orders and
// service orders, computes payable amounts, and sequences the
// "durable side effect, then status flip, then notify" steps. It holds
// no durable state; every operation is resumable from the ledger's
// current row values.
package engine

import (
	"context"
	"fmt"
	"log"
	"path"

	"github.com/shopspring/decimal"
)

// LedgerStore is the durable record of orders and milestones. Status
// updates are conditional on the expected current status; a predicate
// miss must surface as ErrConflict.
type LedgerStore interface {
	GetOrder(ctx context.Context, id string) (Order, error)
	GetMilestone(ctx context.Context, id string) (*Milestone, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to Status, patch StatusPatch) error
	UpdateMilestoneStatus(ctx context.Context, id string, from, to Status, patch StatusPatch) error
	SetContractUsage(ctx context.Context, orderID string, state UsageState) error
}

// StatusPatch carries the fields persisted alongside a status flip.
type StatusPatch struct {
	DeliverableURL *string
	ReviewScore    *float64
	ReviewText     *string
	Tip            *decimal.Decimal
}

// Gateway releases funds to a provider's connected account.
type Gateway interface {
	ReleasePayment(ctx context.Context, accountID string, amount decimal.Decimal, reference string) error
}

// FileStore uploads a deliverable and returns its stable public URL.
type FileStore interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

// Notifier delivers in-app and email notices. Best-effort: the engine
// logs failures and never rolls back on them.
type Notifier interface {
	Notify(ctx context.Context, fromID, toID, event, message, reference string) error
}

// Engine applies lifecycle transitions against injected collaborators.
type Engine struct {
	store    LedgerStore
	gateway  Gateway
	files    FileStore
	notifier Notifier
}

// New wires an Engine. All four collaborators are required.
func New(store LedgerStore, gateway Gateway, files FileStore, notifier Notifier) *Engine {
	return &Engine{store: store, gateway: gateway, files: files, notifier: notifier}
}

// Store exposes the ledger for read paths that bypass transitions.
func (e *Engine) Store() LedgerStore {
	return e.store
}

// AcceptOffer moves a pending offer to Accepted. The actor must be the
// offer recipient (the provider).
func (e *Engine) AcceptOffer(ctx context.Context, actor ActorContext, orderID string) (Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	core := o.Core()
	if actor.UserID != core.ProviderID {
		return nil, ErrForbidden
	}
	if core.Status != StatusPending {
		return nil, ErrConflict
	}
	if err := e.store.UpdateOrderStatus(ctx, orderID, StatusPending, StatusAccepted, StatusPatch{}); err != nil {
		return nil, err
	}
	core.Status = StatusAccepted
	e.setUsage(ctx, orderID, UsagePending)
	e.notify(ctx, core.ProviderID, core.ClientID, "offer:accepted",
		fmt.Sprintf("Your offer %q was accepted.", core.Title), orderID)
	return o, nil
}

// RejectOffer moves a pending offer to the terminal Rejected state.
func (e *Engine) RejectOffer(ctx context.Context, actor ActorContext, orderID string) (Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	core := o.Core()
	if actor.UserID != core.ProviderID {
		return nil, ErrForbidden
	}
	if core.Status != StatusPending {
		return nil, ErrConflict
	}
	if err := e.store.UpdateOrderStatus(ctx, orderID, StatusPending, StatusRejected, StatusPatch{}); err != nil {
		return nil, err
	}
	core.Status = StatusRejected
	e.setUsage(ctx, orderID, UsageRejected)
	e.notify(ctx, core.ProviderID, core.ClientID, "offer:rejected",
		fmt.Sprintf("Your offer %q was rejected.", core.Title), orderID)
	return o, nil
}

// SubmitDeliverable uploads the provider's work and flips the order to
// Submitted. Upload happens before the status write: an upload failure
// leaves the order Accepted, and a ledger failure after a successful
// upload orphans the file but keeps the order retryable. Milestone
// parents are closed to this path; their work moves through
// SubmitMilestone.
func (e *Engine) SubmitDeliverable(ctx context.Context, actor ActorContext, orderID string, file File) (string, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	core := o.Core()
	if actor.UserID != core.ProviderID {
		return "", ErrForbidden
	}
	if o.Kind() == KindMilestone {
		return "", &ValidationError{Field: "order", Reason: "milestone orders take deliverables per milestone"}
	}
	if core.Status != StatusAccepted {
		return "", ErrConflict
	}
	if file.Name == "" || len(file.Data) == 0 {
		return "", &ValidationError{Field: "file", Reason: "a deliverable file is required"}
	}

	url, err := e.files.Upload(ctx, path.Join("deliverables", orderID, file.Name), file.Data, file.ContentType)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	patch := StatusPatch{DeliverableURL: &url}
	if err := e.store.UpdateOrderStatus(ctx, orderID, StatusAccepted, StatusSubmitted, patch); err != nil {
		if err == ErrConflict {
			return "", err
		}
		return "", &PersistError{Op: "submit deliverable", Err: err}
	}
	core.Status = StatusSubmitted
	core.DeliverableURL = url
	e.notify(ctx, core.ProviderID, core.ClientID, "deliverable:submitted",
		fmt.Sprintf("Work was submitted for %q. Review and approve to release payment.", core.Title), orderID)
	return url, nil
}

// SubmitMilestone uploads work for one checkpoint of a milestone order.
// The parent must be Accepted and the milestone not yet submitted.
func (e *Engine) SubmitMilestone(ctx context.Context, actor ActorContext, milestoneID string, file File) (string, error) {
	m, err := e.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return "", err
	}
	o, err := e.store.GetOrder(ctx, m.OrderID)
	if err != nil {
		return "", err
	}
	core := o.Core()
	if actor.UserID != core.ProviderID {
		return "", ErrForbidden
	}
	if core.Status != StatusAccepted {
		return "", ErrConflict
	}
	if m.Status != StatusPending {
		return "", ErrConflict
	}
	if file.Name == "" || len(file.Data) == 0 {
		return "", &ValidationError{Field: "file", Reason: "a deliverable file is required"}
	}

	url, err := e.files.Upload(ctx, path.Join("deliverables", m.OrderID, milestoneID, file.Name), file.Data, file.ContentType)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	patch := StatusPatch{DeliverableURL: &url}
	if err := e.store.UpdateMilestoneStatus(ctx, milestoneID, StatusPending, StatusSubmitted, patch); err != nil {
		if err == ErrConflict {
			return "", err
		}
		return "", &PersistError{Op: "submit milestone", Err: err}
	}
	e.notify(ctx, core.ProviderID, core.ClientID, "milestone:submitted",
		fmt.Sprintf("Milestone %q was submitted on %q.", m.Title, core.Title), milestoneID)
	return url, nil
}

// ApproveWork releases payment and finalizes a submitted order. Strict
// ordering: the gateway release happens before the ledger is marked
// Approved, so a gateway failure leaves the order Submitted and
// retryable. A ledger failure after a successful release is the one
// accepted reconciliation gap; it is logged and retryable via the
// admin reconcile path. Milestone parents are closed to this path:
// approving one here would finalize the parent while its milestones
// are unpaid, so they go through ApproveMilestone and CompleteProject.
func (e *Engine) ApproveWork(ctx context.Context, actor ActorContext, orderID string, review Review, tip *decimal.Decimal) (Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	core := o.Core()
	if actor.UserID != core.ClientID {
		return nil, ErrForbidden
	}
	if o.Kind() == KindMilestone {
		return nil, &ValidationError{Field: "order", Reason: "milestone orders are approved per milestone and closed with complete"}
	}
	if core.Status != StatusSubmitted {
		return nil, ErrConflict
	}
	if err := validateReview(review, tip); err != nil {
		return nil, err
	}

	amount := payout(o, tip)
	if err := e.gateway.ReleasePayment(ctx, core.ProviderAccountID, amount, orderID); err != nil {
		return nil, &PaymentReleaseError{Err: err}
	}

	patch := StatusPatch{ReviewScore: &review.Score, ReviewText: &review.Text, Tip: tip}
	if err := e.store.UpdateOrderStatus(ctx, orderID, StatusSubmitted, StatusApproved, patch); err != nil {
		log.Printf("[engine] RECONCILE order=%s: payment %s released but approval persist failed: %v",
			orderID, amount, err)
		if err == ErrConflict {
			return nil, err
		}
		return nil, &PersistError{Op: "approve work", Err: err}
	}
	core.Status = StatusApproved
	core.ReviewScore = &review.Score
	core.ReviewText = review.Text
	if tip != nil {
		core.Tip = *tip
	}
	e.setUsage(ctx, orderID, UsageCompleted)
	e.notify(ctx, core.ClientID, core.ProviderID, "work:approved",
		fmt.Sprintf("%q was approved. %s has been released to your account.", core.Title, amount), orderID)
	if tip != nil {
		e.notify(ctx, core.ClientID, core.ProviderID, "tip:received",
			fmt.Sprintf("You received a %s tip on %q.", tip, core.Title), orderID)
	}
	return o, nil
}

// ApproveMilestone releases one checkpoint's amount and marks it
// Approved. Same release-before-persist ordering as ApproveWork; no
// review is taken at milestone level.
func (e *Engine) ApproveMilestone(ctx context.Context, actor ActorContext, milestoneID string) (*Milestone, error) {
	m, err := e.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	o, err := e.store.GetOrder(ctx, m.OrderID)
	if err != nil {
		return nil, err
	}
	core := o.Core()
	if actor.UserID != core.ClientID {
		return nil, ErrForbidden
	}
	if m.Status != StatusSubmitted {
		return nil, ErrConflict
	}

	if err := e.gateway.ReleasePayment(ctx, core.ProviderAccountID, m.Amount, milestoneID); err != nil {
		return nil, &PaymentReleaseError{Err: err}
	}
	if err := e.store.UpdateMilestoneStatus(ctx, milestoneID, StatusSubmitted, StatusApproved, StatusPatch{}); err != nil {
		log.Printf("[engine] RECONCILE milestone=%s: payment %s released but approval persist failed: %v",
			milestoneID, m.Amount, err)
		if err == ErrConflict {
			return nil, err
		}
		return nil, &PersistError{Op: "approve milestone", Err: err}
	}
	m.Status = StatusApproved
	e.notify(ctx, core.ClientID, core.ProviderID, "milestone:approved",
		fmt.Sprintf("Milestone %q on %q was approved and %s released.", m.Title, core.Title, m.Amount), milestoneID)
	return m, nil
}

// CompleteProject finalizes a milestone order once every checkpoint is
// Approved. It is distinct from per-milestone approval: base amounts
// were already released per milestone, so only the optional tip moves
// here, along with the parent's review.
func (e *Engine) CompleteProject(ctx context.Context, actor ActorContext, orderID string, review Review, tip *decimal.Decimal) (Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	mo, ok := o.(*MilestoneOrder)
	if !ok {
		return nil, &ValidationError{Field: "order", Reason: "not a milestone order"}
	}
	core := mo.Core()
	if actor.UserID != core.ClientID {
		return nil, ErrForbidden
	}
	if core.Status.Terminal() {
		return nil, ErrConflict
	}
	if !mo.AllMilestonesApproved() {
		return nil, ErrConflict
	}
	if err := validateReview(review, tip); err != nil {
		return nil, err
	}

	if tip != nil {
		if err := e.gateway.ReleasePayment(ctx, core.ProviderAccountID, *tip, orderID); err != nil {
			return nil, &PaymentReleaseError{Err: err}
		}
	}
	patch := StatusPatch{ReviewScore: &review.Score, ReviewText: &review.Text, Tip: tip}
	if err := e.store.UpdateOrderStatus(ctx, orderID, core.Status, StatusApproved, patch); err != nil {
		if tip != nil {
			log.Printf("[engine] RECONCILE order=%s: tip %s released but completion persist failed: %v",
				orderID, tip, err)
		}
		if err == ErrConflict {
			return nil, err
		}
		return nil, &PersistError{Op: "complete project", Err: err}
	}
	core.Status = StatusApproved
	core.ReviewScore = &review.Score
	core.ReviewText = review.Text
	if tip != nil {
		core.Tip = *tip
	}
	e.setUsage(ctx, orderID, UsageCompleted)
	e.notify(ctx, core.ClientID, core.ProviderID, "project:completed",
		fmt.Sprintf("Project %q is complete.", core.Title), orderID)
	return mo, nil
}

func validateReview(review Review, tip *decimal.Decimal) error {
	if !validReviewScore(review.Score) {
		return &ValidationError{Field: "review_score", Reason: "must be 0-5 in half-point steps"}
	}
	if review.Text == "" {
		return &ValidationError{Field: "review_text", Reason: "review text is required"}
	}
	if tip != nil && tip.Sign() <= 0 {
		return &ValidationError{Field: "tip", Reason: "tip must be greater than zero"}
	}
	return nil
}

// setUsage flips the linked contract-tool usage record. Failures are
// logged, never propagated.
func (e *Engine) setUsage(ctx context.Context, orderID string, state UsageState) {
	if err := e.store.SetContractUsage(ctx, orderID, state); err != nil {
		log.Printf("[engine] contract usage update failed order=%s state=%s: %v", orderID, state, err)
	}
}

// notify is fire-and-forget; a failed notification never rolls back
// the preceding steps.
func (e *Engine) notify(ctx context.Context, from, to, event, message, ref string) {
	if err := e.notifier.Notify(ctx, from, to, event, message, ref); err != nil {
		log.Printf("[engine] notification failed event=%s to=%s: %v", event, to, err)
	}
}
