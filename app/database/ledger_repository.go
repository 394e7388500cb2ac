package database

import (
	"fmt"
	"time"
)

// Feed GUIDs are occasionally abused to carry whole article bodies; cap them
// so the ledger key stays indexable.
const maxGUIDLen = 512

type ledgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) IsSeen(feedID, guid string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM seen_items WHERE feed_id = ? AND guid = ?
	`, feedID, capGUID(guid)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check seen item: %w", err)
	}
	return count > 0, nil
}

func (r *ledgerRepository) MarkSeen(feedID, guid string) (bool, error) {
	res, err := r.db.Exec(`
		INSERT INTO seen_items (feed_id, guid, seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT (feed_id, guid) DO NOTHING
	`, feedID, capGUID(guid), time.Now().UTC().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to mark item seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read mark seen result: %w", err)
	}
	return n > 0, nil
}

func capGUID(guid string) string {
	if len(guid) > maxGUIDLen {
		return guid[:maxGUIDLen]
	}
	return guid
}
