package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// WALEntry is one economic write-ahead log entry: a drop pickup, a mob
// kill reward payout, or an NPC shop transaction. CorrelationID ties
// every entry in one WriteWAL batch together so a crash mid-flush can be
// detected and replayed as a unit on restart.
type WALEntry struct {
	CorrelationID string
	TxType        string // "pickup", "reward", "shop_buy", "shop_sell"
	CharName      string
	ItemID        int32
	Count         int32
	GoldAmount    int64
}

type WALRepo struct {
	db *DB
}

func NewWALRepo(db *DB) *WALRepo {
	return &WALRepo{db: db}
}

// WriteWAL atomically writes a batch of WAL entries in a single
// transaction, stamping every entry with a freshly generated
// correlation id if it doesn't already carry one.
func (r *WALRepo) WriteWAL(ctx context.Context, entries []WALEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("wal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	corrID := uuid.NewString()
	for _, e := range entries {
		if e.CorrelationID == "" {
			e.CorrelationID = corrID
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO economic_wal (correlation_id, tx_type, char_name, item_id, count, gold_amount)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.CorrelationID, e.TxType, e.CharName, e.ItemID, e.Count, e.GoldAmount,
		); err != nil {
			return fmt.Errorf("wal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// MarkProcessed marks every WAL entry sharing correlationID as processed
// once its batch has been durably applied.
func (r *WALRepo) MarkProcessed(ctx context.Context, correlationID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE economic_wal SET processed = TRUE WHERE correlation_id = $1`, correlationID,
	)
	return err
}

// PendingCorrelations returns the distinct correlation ids of any
// unprocessed WAL batch, for crash-recovery replay on startup.
func (r *WALRepo) PendingCorrelations(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT DISTINCT correlation_id FROM economic_wal WHERE processed = FALSE`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
