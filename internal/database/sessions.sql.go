// source: sessions.sql

package database

import (
	"context"
	"time"
)

const closeSession = `-- name: CloseSession :execrows
UPDATE sessions
SET status = 'CLOSED', closed_at = now()
WHERE session_key = $1 AND status = 'ACTIVE'
`

func (q *Queries) CloseSession(ctx context.Context, sessionKey string) (int64, error) {
	result, err := q.db.Exec(ctx, closeSession, sessionKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (session_key, expires_at)
VALUES ($1, now() + ($2::int * interval '1 second'))
RETURNING id, session_key, status, started_at, last_seen_at, expires_at, closed_at
`

type CreateSessionParams struct {
	SessionKey string `json:"session_key"`
	TtlSeconds int32  `json:"ttl_seconds"`
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, createSession, arg.SessionKey, arg.TtlSeconds)
	var i Session
	err := row.Scan(
		&i.ID,
		&i.SessionKey,
		&i.Status,
		&i.StartedAt,
		&i.LastSeenAt,
		&i.ExpiresAt,
		&i.ClosedAt,
	)
	return i, err
}

const expireSession = `-- name: ExpireSession :execrows
UPDATE sessions
SET status = 'EXPIRED', closed_at = now()
WHERE session_key = $1 AND status = 'ACTIVE'
`

func (q *Queries) ExpireSession(ctx context.Context, sessionKey string) (int64, error) {
	result, err := q.db.Exec(ctx, expireSession, sessionKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getSessionForUpdate = `-- name: GetSessionForUpdate :one
SELECT sessions.id, sessions.session_key, sessions.status, sessions.started_at,
       sessions.last_seen_at, sessions.expires_at, sessions.closed_at,
       now()::timestamptz AS db_now
FROM sessions
WHERE session_key = $1
FOR UPDATE
`

type GetSessionForUpdateRow struct {
	Session Session   `json:"session"`
	DbNow   time.Time `json:"db_now"`
}

// Locks the row and reads the database clock in the same statement so expiry
// checks never mix application time with stored timestamps.
func (q *Queries) GetSessionForUpdate(ctx context.Context, sessionKey string) (GetSessionForUpdateRow, error) {
	row := q.db.QueryRow(ctx, getSessionForUpdate, sessionKey)
	var i GetSessionForUpdateRow
	err := row.Scan(
		&i.Session.ID,
		&i.Session.SessionKey,
		&i.Session.Status,
		&i.Session.StartedAt,
		&i.Session.LastSeenAt,
		&i.Session.ExpiresAt,
		&i.Session.ClosedAt,
		&i.DbNow,
	)
	return i, err
}

const touchSession = `-- name: TouchSession :execrows
UPDATE sessions
SET last_seen_at = now(),
    expires_at = now() + ($2::int * interval '1 second')
WHERE session_key = $1 AND status = 'ACTIVE'
`

type TouchSessionParams struct {
	SessionKey string `json:"session_key"`
	TtlSeconds int32  `json:"ttl_seconds"`
}

func (q *Queries) TouchSession(ctx context.Context, arg TouchSessionParams) (int64, error) {
	result, err := q.db.Exec(ctx, touchSession, arg.SessionKey, arg.TtlSeconds)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
