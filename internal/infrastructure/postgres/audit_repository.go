package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository is an insert-only log of auth events (registrations,
// activations, login attempts, logouts, password resets).
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

type AuditEntry struct {
	UserID    string
	Email     string
	Action    string
	IP        string
	UserAgent string
	Metadata  map[string]any
}

func (r *AuditRepository) Insert(ctx context.Context, e AuditEntry) error {
	md, _ := json.Marshal(e.Metadata)
	var userID, email, ip, ua any
	if e.UserID != "" {
		userID = e.UserID
	}
	if e.Email != "" {
		email = e.Email
	}
	if e.IP != "" {
		ip = e.IP
	}
	if e.UserAgent != "" {
		ua = e.UserAgent
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, email, action, ip, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, email, e.Action, ip, ua, md)
	return err
}
