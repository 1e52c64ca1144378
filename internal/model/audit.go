package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateReturn     = "CREATE_RETURN"
	ActionTransitionReturn = "TRANSITION_RETURN"
	ActionAttachTracking   = "ATTACH_TRACKING"
	ActionAppendNote       = "APPEND_NOTE"
)

// AuditLog tracks Who, What, and When for every return mutation
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for system-initiated changes
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Return ID
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // RMA number
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the change
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
