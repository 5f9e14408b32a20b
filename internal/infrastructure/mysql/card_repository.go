package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kanban-system/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLCardRepository struct {
	db *sql.DB
}

func NewMySQLCardRepository(db *sql.DB) *MySQLCardRepository {
	return &MySQLCardRepository{db: db}
}

func (r *MySQLCardRepository) CreateCard(ctx context.Context, card *domain.Card) error {
	query := `
        INSERT INTO cards (id, board_id, list_id, title, position, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		card.ID, card.BoardID, card.ListID, card.Title,
		card.Position, card.CreatedAt, card.UpdatedAt)
	return err
}

func (r *MySQLCardRepository) MoveCard(ctx context.Context, cardID string, listID int64, position float64) (*domain.Card, error) {
	query := `UPDATE cards SET list_id = ?, position = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, listID, position, time.Now(), cardID)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.GetCard(ctx, cardID)
}

func (r *MySQLCardRepository) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	query := `
        SELECT id, board_id, list_id, title, position, created_at, updated_at
        FROM cards WHERE id = ?
    `

	var card domain.Card
	err := r.db.QueryRowContext(ctx, query, cardID).Scan(
		&card.ID, &card.BoardID, &card.ListID, &card.Title,
		&card.Position, &card.CreatedAt, &card.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &card, nil
}
