package payments

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/collabhub/collabhub/internal/db"
)

// releaser is satisfied by *Client.
type releaser interface {
	ReleasePayment(ctx context.Context, accountID string, amount decimal.Decimal, reference string) error
}

// Recorder wraps the gateway and writes a payouts row for every release
// attempt. Support reads this table when reconciling a paid order whose
// approval write failed afterward.
type Recorder struct {
	gw releaser
}

func NewRecorder(gw releaser) *Recorder {
	return &Recorder{gw: gw}
}

func (r *Recorder) ReleasePayment(ctx context.Context, accountID string, amount decimal.Decimal, reference string) error {
	err := r.gw.ReleasePayment(ctx, accountID, amount, reference)

	status := "released"
	if err != nil {
		status = "failed"
	}
	if _, insErr := db.Conn.Exec(ctx,
		`INSERT INTO payouts (account_id, amount, reference, status) VALUES ($1, $2, $3, $4)`,
		accountID, amount, reference, status); insErr != nil {
		// The gateway outcome stands either way; losing the audit row is
		// worth a loud log line, not a failed approval.
		log.Printf("[payments] record payout reference=%s status=%s: %v", reference, status, insErr)
	}
	return err
}

// Released reports whether a successful payout row exists for the
// reference. The admin reconcile endpoint checks this before re-running
// a stuck approval.
func Released(ctx context.Context, reference string) (bool, error) {
	var n int
	err := db.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM payouts WHERE reference = $1 AND status = 'released'`, reference).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
