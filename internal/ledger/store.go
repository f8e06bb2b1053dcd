// Package ledger implements the engine's LedgerStore on Postgres. It
// is the single owner of persisted order and milestone state; every
// status write carries the expected-current-status predicate so racing
// writers cannot silently overwrite each other.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/collabhub/collabhub/internal/engine"
)

// ErrNotFound is returned when no order or milestone matches the id.
var ErrNotFound = errors.New("ledger: not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const orderColumns = `
    o.id::text, o.client_id::text, o.provider_id::text,
    COALESCE(u.payout_account_id, ''),
    COALESCE(o.conversation_id::text, ''),
    o.kind, o.title, o.amount, COALESCE(o.price_type, ''), o.status,
    COALESCE(o.deliverable_url, ''), o.review_score, COALESCE(o.review_text, ''),
    o.tip, COALESCE(o.package_name, ''), o.add_ons, o.created_at, o.updated_at`

// GetOrder loads a row, parses it into its typed variant, and for
// milestone orders attaches the child milestones.
func (s *Store) GetOrder(ctx context.Context, id string) (engine.Order, error) {
	var (
		r          engine.Row
		addOnsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+`
         FROM orders o JOIN users u ON u.id = o.provider_id
         WHERE o.id = $1`, id,
	).Scan(
		&r.ID, &r.ClientID, &r.ProviderID, &r.ProviderAccountID,
		&r.ConversationID, &r.Kind, &r.Title, &r.Amount, &r.PriceType,
		&r.Status, &r.DeliverableURL, &r.ReviewScore, &r.ReviewText,
		&r.Tip, &r.PackageName, &addOnsJSON, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: load order %s: %w", id, err)
	}

	if len(addOnsJSON) > 0 {
		if err := json.Unmarshal(addOnsJSON, &r.AddOns); err != nil {
			return nil, fmt.Errorf("ledger: order %s: bad add_ons payload: %w", id, err)
		}
	}

	if engine.Kind(r.Kind) == engine.KindMilestone {
		milestones, err := s.orderMilestones(ctx, id)
		if err != nil {
			return nil, err
		}
		r.Milestones = milestones
	}

	return engine.ParseOrder(r)
}

func (s *Store) orderMilestones(ctx context.Context, orderID string) ([]engine.Milestone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, order_id::text, title, amount,
                COALESCE(due_date, 'epoch'::timestamptz), status,
                COALESCE(deliverable_url, '')
         FROM milestones WHERE order_id = $1 ORDER BY due_date ASC, created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load milestones for %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []engine.Milestone
	for rows.Next() {
		var m engine.Milestone
		if err := rows.Scan(&m.ID, &m.OrderID, &m.Title, &m.Amount, &m.DueDate, &m.Status, &m.DeliverableURL); err != nil {
			return nil, fmt.Errorf("ledger: scan milestone: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMilestone loads a single checkpoint.
func (s *Store) GetMilestone(ctx context.Context, id string) (*engine.Milestone, error) {
	var m engine.Milestone
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, order_id::text, title, amount,
                COALESCE(due_date, 'epoch'::timestamptz), status,
                COALESCE(deliverable_url, '')
         FROM milestones WHERE id = $1`, id,
	).Scan(&m.ID, &m.OrderID, &m.Title, &m.Amount, &m.DueDate, &m.Status, &m.DeliverableURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: load milestone %s: %w", id, err)
	}
	return &m, nil
}

// UpdateOrderStatus flips an order's status conditionally on its
// current value. Zero rows affected means a concurrent writer won or
// the caller's view was stale; that surfaces as engine.ErrConflict.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to engine.Status, patch engine.StatusPatch) error {
	sets := []string{"status = $3", "updated_at = NOW()"}
	args := []any{id, string(from), string(to)}
	n := 4
	if patch.DeliverableURL != nil {
		sets = append(sets, fmt.Sprintf("deliverable_url = $%d", n))
		args = append(args, *patch.DeliverableURL)
		n++
	}
	if patch.ReviewScore != nil {
		sets = append(sets, fmt.Sprintf("review_score = $%d", n))
		args = append(args, *patch.ReviewScore)
		n++
	}
	if patch.ReviewText != nil {
		sets = append(sets, fmt.Sprintf("review_text = $%d", n))
		args = append(args, *patch.ReviewText)
		n++
	}
	if patch.Tip != nil {
		sets = append(sets, fmt.Sprintf("tip = $%d", n))
		args = append(args, *patch.Tip)
		n++
	}

	res, err := s.pool.Exec(ctx,
		`UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE id = $1 AND status = $2`, args...)
	if err != nil {
		return fmt.Errorf("ledger: update order %s: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return engine.ErrConflict
	}
	return nil
}

// UpdateMilestoneStatus is the milestone-side conditional status flip.
func (s *Store) UpdateMilestoneStatus(ctx context.Context, id string, from, to engine.Status, patch engine.StatusPatch) error {
	sets := []string{"status = $3", "updated_at = NOW()"}
	args := []any{id, string(from), string(to)}
	if patch.DeliverableURL != nil {
		sets = append(sets, "deliverable_url = $4")
		args = append(args, *patch.DeliverableURL)
	}

	res, err := s.pool.Exec(ctx,
		`UPDATE milestones SET `+strings.Join(sets, ", ")+` WHERE id = $1 AND status = $2`, args...)
	if err != nil {
		return fmt.Errorf("ledger: update milestone %s: %w", id, err)
	}
	if res.RowsAffected() == 0 {
		return engine.ErrConflict
	}
	return nil
}

// SetContractUsage upserts the linked contract-tool usage record.
func (s *Store) SetContractUsage(ctx context.Context, orderID string, state engine.UsageState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO contract_usage (order_id, state, updated_at)
         VALUES ($1, $2, NOW())
         ON CONFLICT (order_id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		orderID, string(state))
	if err != nil {
		return fmt.Errorf("ledger: contract usage for %s: %w", orderID, err)
	}
	return nil
}
