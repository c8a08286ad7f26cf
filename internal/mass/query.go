package mass

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wecom_ops/internal/model"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func paginate[T any](q *gorm.DB, order string, page, size int) (*Page[T], error) {
	page, size = normalizePage(page, size)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	items := make([]T, 0)
	if err := q.Order(order).Limit(size).Offset((page - 1) * size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return &Page[T]{Items: items, Total: total, Page: page, Size: size}, nil
}

// ListTasks 任务列表，支持状态、关键字与创建时间区间筛选
func (s *Service) ListTasks(ctx context.Context, req *ListTasksQuery) (*Page[TaskView], error) {
	q := s.db.WithContext(ctx).Model(&model.MassTask{})

	if v := strings.TrimSpace(req.Status); v != "" {
		var statuses []model.MassTaskStatus
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			status, ok := model.ParseMassTaskStatus(part)
			if !ok {
				return nil, ValidationError("invalid status: %s", part)
			}
			statuses = append(statuses, status)
		}
		if len(statuses) > 0 {
			q = q.Where("status IN ?", statuses)
		}
	}
	if v := strings.TrimSpace(req.Q); v != "" {
		like := "%" + v + "%"
		q = q.Where("(task_no LIKE ? OR name LIKE ?)", like, like)
	}
	if v := strings.TrimSpace(req.DateFrom); v != "" {
		from, err := parseFlexTime(v)
		if err != nil {
			return nil, ValidationError("invalid date_from: %s", v)
		}
		q = q.Where("created_at >= ?", from)
	}
	if v := strings.TrimSpace(req.DateTo); v != "" {
		to, err := parseFlexTime(v)
		if err != nil {
			return nil, ValidationError("invalid date_to: %s", v)
		}
		// 仅日期时包含当天
		if len(v) == len("2006-01-02") {
			q = q.Where("created_at < ?", to.Add(24*time.Hour))
		} else {
			q = q.Where("created_at <= ?", to)
		}
	}

	page, err := paginate[model.MassTask](q, "id DESC", req.Page, req.Size)
	if err != nil {
		return nil, err
	}
	views := make([]TaskView, len(page.Items))
	for i, t := range page.Items {
		views[i] = newTaskView(t)
	}
	return &Page[TaskView]{Items: views, Total: page.Total, Page: page.Page, Size: page.Size}, nil
}

// ListTargets 任务快照分页，按 wave、batch、id 排序
func (s *Service) ListTargets(ctx context.Context, id int64, req *ListTargetsQuery) (*Page[model.MassTargetSnapshot], error) {
	db := s.db.WithContext(ctx)
	if _, err := s.loadTask(db, id); err != nil {
		return nil, err
	}

	q := db.Model(&model.MassTargetSnapshot{}).Where("task_id = ?", id)
	if v := strings.TrimSpace(req.State); v != "" {
		state := model.SnapshotState(strings.ToLower(v))
		if !state.Valid() {
			return nil, ValidationError("invalid state: %s", v)
		}
		q = q.Where("state = ?", state)
	}
	return paginate[model.MassTargetSnapshot](q, "wave_no ASC, batch_no ASC, id ASC", req.Page, req.Size)
}

// ListLogs 任务日志分页，最新在前
func (s *Service) ListLogs(ctx context.Context, id int64, req *ListLogsQuery) (*Page[model.MassTaskLog], error) {
	db := s.db.WithContext(ctx)
	if _, err := s.loadTask(db, id); err != nil {
		return nil, err
	}

	q := db.Model(&model.MassTaskLog{}).Where("task_id = ?", id)
	if v := strings.TrimSpace(req.Level); v != "" {
		q = q.Where("level = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(req.Q); v != "" {
		q = q.Where("message LIKE ?", "%"+v+"%")
	}
	return paginate[model.MassTaskLog](q, "id DESC", req.Page, req.Size)
}

type stateCount struct {
	State model.SnapshotState
	N     int64
}

// countByState groups snapshot rows of a task by state; wave 0 means every wave
func countByState(db *gorm.DB, taskID int64, waveNo int) (TaskStats, error) {
	stats := TaskStats{TaskID: taskID}

	q := db.Model(&model.MassTargetSnapshot{}).Where("task_id = ?", taskID)
	if waveNo > 0 {
		q = q.Where("wave_no = ?", waveNo)
	}
	var rows []stateCount
	if err := q.Select("state, COUNT(*) AS n").Group("state").Scan(&rows).Error; err != nil {
		return stats, fmt.Errorf("count snapshots: %w", err)
	}
	for _, r := range rows {
		stats.add(r.State, r.N)
	}
	return stats, nil
}

// Stats 快照状态统计
func (s *Service) Stats(ctx context.Context, id int64) (*TaskStats, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.loadTask(db, id); err != nil {
		return nil, err
	}
	stats, err := countByState(db, id, 0)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
