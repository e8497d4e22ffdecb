// source: staff.sql

package database

import (
	"context"

	"github.com/google/uuid"
)

const getStaffByID = `-- name: GetStaffByID :one
SELECT id, username, hashed_password, full_name, role, pin, is_active, created_at
FROM staff
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetStaffByID(ctx context.Context, id uuid.UUID) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByID, id)
	var i Staff
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.HashedPassword,
		&i.FullName,
		&i.Role,
		&i.Pin,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const getStaffByPin = `-- name: GetStaffByPin :one
SELECT id, username, hashed_password, full_name, role, pin, is_active, created_at
FROM staff
WHERE pin = $1 AND is_active = true
`

func (q *Queries) GetStaffByPin(ctx context.Context, pin string) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByPin, pin)
	var i Staff
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.HashedPassword,
		&i.FullName,
		&i.Role,
		&i.Pin,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const getStaffByUsername = `-- name: GetStaffByUsername :one
SELECT id, username, hashed_password, full_name, role, pin, is_active, created_at
FROM staff
WHERE username = $1 AND is_active = true
`

func (q *Queries) GetStaffByUsername(ctx context.Context, username string) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByUsername, username)
	var i Staff
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.HashedPassword,
		&i.FullName,
		&i.Role,
		&i.Pin,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}
