package mass

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wecom_ops/internal/model"
)

// FlexTime accepts "2006-01-02 15:04:05", "2006-01-02T15:04" style or RFC3339 text; "" means unset
type FlexTime struct {
	time.Time
}

var flexTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseFlexTime(s string) (time.Time, error) {
	for _, layout := range flexTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := parseFlexTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t *FlexTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// OptionalTime distinguishes an absent field from an explicit null.
// Set is true whenever the key is present; null or "" clears the value.
type OptionalTime struct {
	Set  bool
	Time FlexTime
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	return o.Time.UnmarshalJSON(data)
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	TaskNo           string          `json:"task_no"`
	Name             string          `json:"name"`
	MassType         string          `json:"mass_type"`
	ContentType      string          `json:"content_type"`
	ContentJSON      json.RawMessage `json:"content_json"`
	TargetsSpec      json.RawMessage `json:"targets_spec"`
	ScheduledAt      *FlexTime       `json:"scheduled_at"`
	QPSLimit         *int            `json:"qps_limit"`
	ConcurrencyLimit *int            `json:"concurrency_limit"`
	BatchSize        *int            `json:"batch_size"`
	GrayStrategy     json.RawMessage `json:"gray_strategy"`
	ReportStat       json.RawMessage `json:"report_stat"`
	AgentID          *string         `json:"agent_id"`
}

// UpdateTaskRequest 更新任务请求，仅白名单字段，缺省字段不修改
type UpdateTaskRequest struct {
	Name             *string         `json:"name"`
	ContentJSON      json.RawMessage `json:"content_json"`
	TargetsSpec      json.RawMessage `json:"targets_spec"`
	ScheduledAt      OptionalTime    `json:"scheduled_at"`
	QPSLimit         *int            `json:"qps_limit"`
	ConcurrencyLimit *int            `json:"concurrency_limit"`
	BatchSize        *int            `json:"batch_size"`
	GrayStrategy     json.RawMessage `json:"gray_strategy"`
	ReportStat       json.RawMessage `json:"report_stat"`
	AgentID          *string         `json:"agent_id"`
}

// TaskView is a task with its status label
type TaskView struct {
	model.MassTask
	StatusLabel string `json:"status_label"`
}

func newTaskView(t model.MassTask) TaskView {
	return TaskView{MassTask: t, StatusLabel: t.Status.Label()}
}

// ListTasksQuery 任务列表筛选
type ListTasksQuery struct {
	Status   string `form:"status"`
	Q        string `form:"q"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Page     int    `form:"page"`
	Size     int    `form:"size"`
}

// ListTargetsQuery 快照列表筛选
type ListTargetsQuery struct {
	State string `form:"state"`
	Page  int    `form:"page"`
	Size  int    `form:"size"`
}

// ListLogsQuery 任务日志筛选
type ListLogsQuery struct {
	Level string `form:"level"`
	Q     string `form:"q"`
	Page  int    `form:"page"`
	Size  int    `form:"size"`
}

// Page is one page of items with the unpaged total
type Page[T any] struct {
	Items []T
	Total int64
	Page  int
	Size  int
}

// PlanResult 规划结果
type PlanResult struct {
	TaskID    int64      `json:"task_id"`
	Status    string     `json:"status"`
	Total     int        `json:"total"`
	Inserted  int64      `json:"inserted"`
	BatchSize int        `json:"batch_size"`
	Waves     []WaveSize `json:"waves"`
}

// TaskStats 快照状态统计，六种状态始终出现
type TaskStats struct {
	TaskID   int64 `json:"task_id"`
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Planned  int64 `json:"planned"`
	Running  int64 `json:"running"`
	Done     int64 `json:"done"`
	Failed   int64 `json:"failed"`
	Recalled int64 `json:"recalled"`
}

func (s *TaskStats) add(state model.SnapshotState, n int64) {
	switch state {
	case model.SnapshotStatePending:
		s.Pending += n
	case model.SnapshotStatePlanned:
		s.Planned += n
	case model.SnapshotStateRunning:
		s.Running += n
	case model.SnapshotStateDone:
		s.Done += n
	case model.SnapshotStateFailed:
		s.Failed += n
	case model.SnapshotStateRecalled:
		s.Recalled += n
	default:
		return
	}
	s.Total += n
}

// RecallResult 撤回结果
type RecallResult struct {
	TaskID   int64  `json:"task_id"`
	Status   string `json:"status"`
	Recalled int64  `json:"recalled"`
}

// RetryResult 失败重试结果
type RetryResult struct {
	TaskID  int64 `json:"task_id"`
	Retried int64 `json:"reset"`
}

// AdvanceResult is the outcome of promoting one wave
type AdvanceResult struct {
	TaskID        int64     `json:"task_id"`
	WaveNo        int       `json:"wave_no"`
	ChangedToDone int64     `json:"changed_to_done"`
	ByWave        TaskStats `json:"by_wave"`
	ByAll         TaskStats `json:"by_all"`
	Status        string    `json:"status"`
	Finished      bool      `json:"finished"`
}
