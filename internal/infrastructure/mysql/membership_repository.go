package mysql

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLMembershipRepository answers board view-permission checks against
// the board_members table. Each check is a point query; results are
// never cached because membership can change between connection time
// and event time.
type MySQLMembershipRepository struct {
	db *sql.DB
}

func NewMySQLMembershipRepository(db *sql.DB) *MySQLMembershipRepository {
	return &MySQLMembershipRepository{db: db}
}

func (r *MySQLMembershipRepository) CanView(ctx context.Context, userID, boardID int64) (bool, error) {
	query := `SELECT 1 FROM board_members WHERE user_id = ? AND board_id = ? LIMIT 1`

	var one int
	err := r.db.QueryRowContext(ctx, query, userID, boardID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
