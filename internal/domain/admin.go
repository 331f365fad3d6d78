package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AdminUser represents an admin_users row.
type AdminUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActivityType names an admin_activity_log entry.
type ActivityType string

const (
	ActivityBatchCreated    ActivityType = "payout_batch_created"
	ActivityBatchDeleted    ActivityType = "payout_batch_deleted"
	ActivityBatchVerified   ActivityType = "payout_batch_verified"
	ActivityBatchProcessed  ActivityType = "payout_batch_processed"
	ActivityPayoutSent      ActivityType = "payout_sent_to_provider"
	ActivityPayoutRetried   ActivityType = "payout_retry_requested"
	ActivityStatusSynced    ActivityType = "payout_status_synced"
	ActivityPayoutsExported ActivityType = "payout_data_exported"
	ActivityAdminLogin      ActivityType = "admin_login"
)

// ActivityEntry is an append-only admin_activity_log row.
type ActivityEntry struct {
	ID             uuid.UUID       `json:"id"`
	AdminUserID    *uuid.UUID      `json:"admin_user_id,omitempty"`
	ActivityType   ActivityType    `json:"activity_type"`
	Description    string          `json:"description"`
	TargetUserID   *uuid.UUID      `json:"target_user_id,omitempty"`
	TargetEntityID *uuid.UUID      `json:"target_entity_id,omitempty"`
	Details        json.RawMessage `json:"details"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Verification is an immutable admin_verifications row.
type Verification struct {
	ID               uuid.UUID `json:"id"`
	AdminUserID      uuid.UUID `json:"admin_user_id"`
	TargetEntityType string    `json:"target_entity_type"`
	TargetEntityID   uuid.UUID `json:"target_entity_id"`
	VerificationType string    `json:"verification_type"`
	IsVerified       bool      `json:"is_verified"`
	Notes            string    `json:"notes"`
	VerifiedAt       time.Time `json:"verified_at"`
}

// GuardResult is the outcome of a guard check.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}
