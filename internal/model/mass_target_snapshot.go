package model

import "time"

// SnapshotState 目标快照状态
type SnapshotState string

const (
	SnapshotStatePending  SnapshotState = "pending"
	SnapshotStatePlanned  SnapshotState = "planned"
	SnapshotStateRunning  SnapshotState = "running"
	SnapshotStateDone     SnapshotState = "done"
	SnapshotStateFailed   SnapshotState = "failed"
	SnapshotStateRecalled SnapshotState = "recalled"
)

// SnapshotStates lists every state in report column order
var SnapshotStates = []SnapshotState{
	SnapshotStatePending,
	SnapshotStatePlanned,
	SnapshotStateRunning,
	SnapshotStateDone,
	SnapshotStateFailed,
	SnapshotStateRecalled,
}

// Valid reports whether s is one of the known states
func (s SnapshotState) Valid() bool {
	for _, known := range SnapshotStates {
		if s == known {
			return true
		}
	}
	return false
}

// MassTargetSnapshot 群发目标快照，每个 (task, recipient) 一行
type MassTargetSnapshot struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID      int64         `gorm:"not null;index:idx_task_state,priority:1;index:idx_task_wave_batch,priority:1;index:idx_task_recipient,priority:1" json:"task_id"`
	RecipientID string        `gorm:"type:varchar(64);not null;index:idx_task_recipient,priority:2" json:"recipient_id"`
	ShardNo     int           `gorm:"not null;default:0" json:"shard_no"`
	WaveNo      int           `gorm:"not null;index:idx_task_wave_batch,priority:2" json:"wave_no"`
	BatchNo     int           `gorm:"not null;index:idx_task_wave_batch,priority:3" json:"batch_no"`
	State       SnapshotState `gorm:"type:varchar(16);not null;default:'pending';index:idx_task_state,priority:2" json:"state"`
	LastError   *string       `gorm:"type:varchar(256)" json:"last_error"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (MassTargetSnapshot) TableName() string {
	return "mass_target_snapshot"
}
