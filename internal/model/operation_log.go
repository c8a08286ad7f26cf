package model

import "time"

// OperationLog is the operator audit trail for mutating API calls
type OperationLog struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Operator     string    `gorm:"type:varchar(64);not null;index" json:"operator"`
	Action       string    `gorm:"type:varchar(64);not null" json:"action"`
	ResourceType string    `gorm:"type:varchar(32);not null;index:idx_resource,priority:1" json:"resource_type"`
	ResourceID   string    `gorm:"type:varchar(64);not null;index:idx_resource,priority:2" json:"resource_id"`
	Result       string    `gorm:"type:varchar(16);not null" json:"result"`
	Detail       *string   `gorm:"type:text" json:"detail"`
	TraceID      string    `gorm:"type:varchar(64)" json:"trace_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for OperationLog model
func (OperationLog) TableName() string {
	return "operation_log"
}
