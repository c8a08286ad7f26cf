package model

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// MassTaskStatus 群发任务状态
type MassTaskStatus int

const (
	MassTaskStatusDraft    MassTaskStatus = 0
	MassTaskStatusPlanned  MassTaskStatus = 1
	MassTaskStatusRunning  MassTaskStatus = 2
	MassTaskStatusPaused   MassTaskStatus = 3
	MassTaskStatusFinished MassTaskStatus = 4
	MassTaskStatusRecalled MassTaskStatus = 5
)

var massTaskStatusLabels = map[MassTaskStatus]string{
	MassTaskStatusDraft:    "DRAFT",
	MassTaskStatusPlanned:  "PLANNED",
	MassTaskStatusRunning:  "RUNNING",
	MassTaskStatusPaused:   "PAUSED",
	MassTaskStatusFinished: "FINISHED",
	MassTaskStatusRecalled: "RECALLED",
}

// Label returns the upper-case status name, UNKNOWN for out-of-range values
func (s MassTaskStatus) Label() string {
	if l, ok := massTaskStatusLabels[s]; ok {
		return l
	}
	return "UNKNOWN"
}

// ParseMassTaskStatus accepts either the numeric code or the label
func ParseMassTaskStatus(v string) (MassTaskStatus, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		_, ok := massTaskStatusLabels[MassTaskStatus(n)]
		return MassTaskStatus(n), ok
	}
	v = strings.ToUpper(v)
	for s, l := range massTaskStatusLabels {
		if l == v {
			return s, true
		}
	}
	return 0, false
}

// MassTask 群发任务
type MassTask struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskNo           string         `gorm:"type:varchar(64);not null;uniqueIndex:uk_task_no" json:"task_no"`
	Name             string         `gorm:"type:varchar(128);not null;default:''" json:"name"`
	MassType         string         `gorm:"type:varchar(32);not null;default:'external'" json:"mass_type"`
	ContentType      string         `gorm:"type:varchar(32);not null" json:"content_type"`
	ContentJSON      datatypes.JSON `gorm:"column:content_json;type:json" json:"content_json"`
	TargetsSpec      datatypes.JSON `gorm:"column:targets_spec;type:json" json:"targets_spec"`
	Status           MassTaskStatus `gorm:"type:tinyint;not null;default:0;index:idx_status_scheduled" json:"status"`
	ScheduledAt      *time.Time     `gorm:"index:idx_status_scheduled" json:"scheduled_at"`
	QPSLimit         int            `gorm:"column:qps_limit;not null;default:100" json:"qps_limit"`
	ConcurrencyLimit int            `gorm:"not null;default:50" json:"concurrency_limit"`
	BatchSize        int            `gorm:"not null;default:300" json:"batch_size"`
	GrayStrategy     datatypes.JSON `gorm:"type:json" json:"gray_strategy"`
	ReportStat       datatypes.JSON `gorm:"type:json" json:"report_stat"`
	AgentID          *string        `gorm:"type:varchar(64)" json:"agent_id"`
	StartedAt        *time.Time     `json:"started_at"`
	FinishedAt       *time.Time     `json:"finished_at"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (MassTask) TableName() string {
	return "mass_task"
}
