package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

// StaffRepository looks up branch staff for the stub backend's login.
type StaffRepository struct {
	db *sqlx.DB
}

type staffRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	BranchID     string `db:"branch_id"`
	Role         string `db:"role"`
	PasswordHash string `db:"password_hash"`
	Status       string `db:"status"`
}

func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) StaffByEmail(ctx context.Context, email string) (domain.Staff, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" {
		return domain.Staff{}, vo.ErrInvalidCredentials
	}

	const query = `
		SELECT id::text AS id, email, name, branch_id, role, password_hash, status
		FROM staff
		WHERE lower(email) = $1
		LIMIT 1
	`

	var row staffRow
	if err := r.db.GetContext(ctx, &row, query, normalizedEmail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Staff{}, vo.ErrInvalidCredentials
		}
		return domain.Staff{}, fmt.Errorf("repository: get staff by email failed: %w", err)
	}

	if row.Status != "active" {
		return domain.Staff{}, vo.ErrInvalidCredentials
	}

	return domain.Staff{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		BranchID:     row.BranchID,
		Role:         row.Role,
		PasswordHash: row.PasswordHash,
	}, nil
}
