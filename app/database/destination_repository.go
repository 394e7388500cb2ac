package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type destinationRepository struct {
	db *DB
}

func NewDestinationRepository(db *DB) DestinationRepository {
	return &destinationRepository{db: db}
}

func (r *destinationRepository) GetDestination(id string) (*Destination, error) {
	var dest Destination
	var createdMS int64
	err := r.db.QueryRow(`
		SELECT id, owner, chat_id, name, created_at FROM destinations WHERE id = ?
	`, id).Scan(&dest.ID, &dest.Owner, &dest.ChatID, &dest.Name, &createdMS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get destination: %w", err)
	}
	dest.CreatedAt = time.UnixMilli(createdMS).UTC()
	return &dest, nil
}

func (r *destinationRepository) GetDestinationByChatID(owner int64, chatID string) (*Destination, error) {
	var dest Destination
	var createdMS int64
	err := r.db.QueryRow(`
		SELECT id, owner, chat_id, name, created_at FROM destinations WHERE owner = ? AND chat_id = ?
	`, owner, chatID).Scan(&dest.ID, &dest.Owner, &dest.ChatID, &dest.Name, &createdMS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get destination by chat id: %w", err)
	}
	dest.CreatedAt = time.UnixMilli(createdMS).UTC()
	return &dest, nil
}

func (r *destinationRepository) GetAllDestinations() ([]Destination, error) {
	rows, err := r.db.Query(`SELECT id, owner, chat_id, name, created_at FROM destinations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to get destinations: %w", err)
	}
	defer rows.Close()

	var dests []Destination
	for rows.Next() {
		var dest Destination
		var createdMS int64
		if err := rows.Scan(&dest.ID, &dest.Owner, &dest.ChatID, &dest.Name, &createdMS); err != nil {
			return nil, fmt.Errorf("failed to scan destination row: %w", err)
		}
		dest.CreatedAt = time.UnixMilli(createdMS).UTC()
		dests = append(dests, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating destination rows: %w", err)
	}
	return dests, nil
}

func (r *destinationRepository) GetDestinationCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM destinations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get destination count: %w", err)
	}
	return count, nil
}

func (r *destinationRepository) UpsertDestination(dest Destination) (string, error) {
	if dest.ID == "" {
		dest.ID = uuid.NewString()
	}
	_, err := r.db.Exec(`
		INSERT INTO destinations (id, owner, chat_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner, chat_id) DO UPDATE SET name = excluded.name
	`, dest.ID, dest.Owner, dest.ChatID, dest.Name, time.Now().UTC().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to upsert destination: %w", err)
	}

	var id string
	err = r.db.QueryRow(`SELECT id FROM destinations WHERE owner = ? AND chat_id = ?`, dest.Owner, dest.ChatID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve destination id: %w", err)
	}
	return id, nil
}

func (r *destinationRepository) DeleteDestination(id string) error {
	_, err := r.db.Exec(`DELETE FROM destinations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete destination: %w", err)
	}
	return nil
}
