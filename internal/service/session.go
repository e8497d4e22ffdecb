package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiosk-pos/api/internal/database"
	"github.com/kiosk-pos/api/internal/metrics"
)

// DefaultSessionTTL is how long a kiosk session lives without a touch.
const DefaultSessionTTL = 7 * time.Minute

// SessionStore defines the DB methods needed for the kiosk session lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type SessionStore interface {
	CreateSession(ctx context.Context, arg database.CreateSessionParams) (database.Session, error)
	GetSessionForUpdate(ctx context.Context, sessionKey string) (database.GetSessionForUpdateRow, error)
	TouchSession(ctx context.Context, arg database.TouchSessionParams) (int64, error)
	ExpireSession(ctx context.Context, sessionKey string) (int64, error)
	CloseSession(ctx context.Context, sessionKey string) (int64, error)
}

// NewSessionStore creates a SessionStore from a DBTX (pool or tx).
type NewSessionStore func(db database.DBTX) SessionStore

// SessionState is the outcome of evaluating a session against a clock.
type SessionState struct {
	Session database.Session
	Status  database.SessionStatus
	LeftSec int
	// Expired is set when the session was ACTIVE but its expiry has passed.
	// The caller must persist the EXPIRED status.
	Expired bool
}

// EvaluateSession applies lazy expiry to s as of now. It never touches storage.
func EvaluateSession(s database.Session, now time.Time) SessionState {
	if s.Status != database.SessionStatusACTIVE {
		return SessionState{Session: s, Status: s.Status}
	}
	left := int(s.ExpiresAt.Sub(now) / time.Second)
	if left <= 0 {
		s.Status = database.SessionStatusEXPIRED
		s.ClosedAt = pgtype.Timestamptz{Time: now, Valid: true}
		return SessionState{Session: s, Status: s.Status, Expired: true}
	}
	return SessionState{Session: s, Status: s.Status, LeftSec: left}
}

// SessionResult is what the session operations report back to the kiosk.
type SessionResult struct {
	SessionKey   string                 `json:"session_key,omitempty"`
	Status       database.SessionStatus `json:"status"`
	ExpiresInSec int                    `json:"expires_in_sec"`
}

// SessionService manages kiosk sessions.
type SessionService struct {
	pool     TxBeginner
	newStore NewSessionStore
	ttl      time.Duration
	newKey   func() (string, error)
}

// NewSessionService creates a SessionService. A non-positive ttl falls back
// to DefaultSessionTTL.
func NewSessionService(pool TxBeginner, newStore NewSessionStore, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{pool: pool, newStore: newStore, ttl: ttl, newKey: newSessionKey}
}

func (s *SessionService) ttlSeconds() int32 {
	return int32(s.ttl / time.Second)
}

// Start opens a new ACTIVE session.
func (s *SessionService) Start(ctx context.Context) (*SessionResult, error) {
	key, err := s.newKey()
	if err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sess, err := s.newStore(tx).CreateSession(ctx, database.CreateSessionParams{
		SessionKey: key,
		TtlSeconds: s.ttlSeconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.SessionsStarted.Inc()
	return &SessionResult{
		SessionKey:   sess.SessionKey,
		Status:       sess.Status,
		ExpiresInSec: int(s.ttlSeconds()),
	}, nil
}

// Touch extends a live session. An elapsed session is expired instead and
// never extended.
func (s *SessionService) Touch(ctx context.Context, key string) (*SessionResult, error) {
	return s.withSession(ctx, key, func(store SessionStore, st SessionState) (*SessionResult, error) {
		if st.Status != database.SessionStatusACTIVE {
			return &SessionResult{Status: st.Status}, nil
		}
		if _, err := store.TouchSession(ctx, database.TouchSessionParams{
			SessionKey: key,
			TtlSeconds: s.ttlSeconds(),
		}); err != nil {
			return nil, fmt.Errorf("touch session: %w", err)
		}
		return &SessionResult{Status: st.Status, ExpiresInSec: int(s.ttlSeconds())}, nil
	})
}

// Status reports the session status and its remaining seconds.
func (s *SessionService) Status(ctx context.Context, key string) (*SessionResult, error) {
	return s.withSession(ctx, key, func(_ SessionStore, st SessionState) (*SessionResult, error) {
		return &SessionResult{Status: st.Status, ExpiresInSec: st.LeftSec}, nil
	})
}

// Close ends an ACTIVE session. Other statuses are left as they are.
func (s *SessionService) Close(ctx context.Context, key string) (*SessionResult, error) {
	return s.withSession(ctx, key, func(store SessionStore, st SessionState) (*SessionResult, error) {
		if st.Status != database.SessionStatusACTIVE {
			return &SessionResult{Status: st.Status}, nil
		}
		if _, err := store.CloseSession(ctx, key); err != nil {
			return nil, fmt.Errorf("close session: %w", err)
		}
		return &SessionResult{Status: database.SessionStatusCLOSED}, nil
	})
}

// withSession locks the session row, applies lazy expiry, runs fn and commits.
func (s *SessionService) withSession(ctx context.Context, key string, fn func(SessionStore, SessionState) (*SessionResult, error)) (*SessionResult, error) {
	if key == "" {
		return nil, ErrSessionKeyRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	st, err := loadSession(ctx, store, key)
	if err != nil {
		return nil, err
	}

	res, err := fn(store, st)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return res, nil
}

// sessionLoader is the subset of SessionStore needed to evaluate a session.
type sessionLoader interface {
	GetSessionForUpdate(ctx context.Context, sessionKey string) (database.GetSessionForUpdateRow, error)
	ExpireSession(ctx context.Context, sessionKey string) (int64, error)
}

// loadSession locks the row and evaluates it against the database clock,
// writing the EXPIRED transition when the session has just lapsed.
func loadSession(ctx context.Context, store sessionLoader, key string) (SessionState, error) {
	row, err := store.GetSessionForUpdate(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SessionState{}, ErrSessionNotFound
		}
		return SessionState{}, fmt.Errorf("get session: %w", err)
	}

	st := EvaluateSession(row.Session, row.DbNow)
	if st.Expired {
		if _, err := store.ExpireSession(ctx, key); err != nil {
			return SessionState{}, fmt.Errorf("expire session: %w", err)
		}
	}
	return st, nil
}

// newSessionKey returns 128 random bits, hex encoded.
func newSessionKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
