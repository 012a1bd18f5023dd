package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/account-service/internal/domain"
)

// DBTX is the subset of pgx used by the audit store; satisfied by
// *pgxpool.Pool, pgx.Tx and test mocks.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByTarget(ctx context.Context, targetID string, limit int) ([]*domain.AuditLog, error)
}

type auditRepository struct {
	db DBTX
}

// NewAuditRepository returns a Postgres-backed implementation.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	const query = `
        INSERT INTO audit_logs (id, operation_type, operator_id, operator_role, target_id, target_type,
            action, ip_address, user_agent, details, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	var targetID *string
	if entry.TargetID != "" {
		targetID = &entry.TargetID
	}

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		string(entry.OperationType),
		entry.OperatorID,
		string(entry.OperatorRole),
		targetID,
		entry.TargetType,
		entry.Action,
		entry.IPAddress,
		entry.UserAgent,
		payload,
		string(entry.Status),
		entry.CreatedAt,
	)
	return err
}

func (r *auditRepository) ListByTarget(ctx context.Context, targetID string, limit int) ([]*domain.AuditLog, error) {
	const query = `
        SELECT id, operation_type, operator_id, operator_role, COALESCE(target_id, ''), target_type,
            action, ip_address, user_agent, details, status, created_at
        FROM audit_logs WHERE target_id=$1
        ORDER BY created_at DESC
        LIMIT $2`

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, query, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.AuditLog
	for rows.Next() {
		var (
			entry   domain.AuditLog
			opType  string
			role    string
			status  string
			payload []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&opType,
			&entry.OperatorID,
			&role,
			&entry.TargetID,
			&entry.TargetType,
			&entry.Action,
			&entry.IPAddress,
			&entry.UserAgent,
			&payload,
			&status,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.OperationType = domain.OperationType(opType)
		entry.OperatorRole = domain.Role(role)
		entry.Status = domain.AuditStatus(status)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
