package domain

import "time"

// AuditStatus records the outcome of an audited operation.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// OperationType groups audited operations.
type OperationType string

const (
	OperationUser   OperationType = "user"
	OperationAdmin  OperationType = "admin"
	OperationSystem OperationType = "system"
)

// AuditLog is an append-only record of a security relevant operation.
type AuditLog struct {
	ID            string
	OperationType OperationType
	OperatorID    string
	OperatorRole  Role
	TargetID      string
	TargetType    string
	Action        string
	IPAddress     string
	UserAgent     string
	Details       map[string]any
	Status        AuditStatus
	CreatedAt     time.Time
}
