package model

import "time"

// MassTaskLog 任务诊断日志（只追加）
type MassTaskLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID    int64     `gorm:"not null;index" json:"task_id"`
	Level     string    `gorm:"type:varchar(16);not null;default:'info'" json:"level"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (MassTaskLog) TableName() string {
	return "mass_task_log"
}
