package mass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wecom_ops/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options carries the per-task defaults and planner limits
type Options struct {
	DefaultBatchSize   int
	DefaultQPSLimit    int
	DefaultConcurrency int
	DefaultTargetLimit int
	InsertChunkSize    int
}

func (o Options) withDefaults() Options {
	if o.DefaultBatchSize <= 0 {
		o.DefaultBatchSize = 300
	}
	if o.DefaultQPSLimit <= 0 {
		o.DefaultQPSLimit = 100
	}
	if o.DefaultConcurrency <= 0 {
		o.DefaultConcurrency = 50
	}
	if o.DefaultTargetLimit <= 0 {
		o.DefaultTargetLimit = 50000
	}
	if o.InsertChunkSize <= 0 {
		o.InsertChunkSize = 1000
	}
	return o
}

// Service 群发任务服务
type Service struct {
	db        *gorm.DB
	opts      Options
	logger    *logrus.Entry
	sourceFor func(tx *gorm.DB) ContactSource
	now       func() time.Time
}

// NewService 创建群发任务服务
func NewService(db *gorm.DB, opts Options, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		db:     db,
		opts:   opts.withDefaults(),
		logger: logger.WithField("component", "mass"),
		sourceFor: func(tx *gorm.DB) ContactSource {
			return NewContactStore(tx)
		},
		now: time.Now,
	}
}

// Resolver returns a resolver reading through the service's connection
func (s *Service) Resolver() *Resolver {
	return NewResolver(s.sourceFor(s.db), s.opts.DefaultTargetLimit)
}

// jsonDoc returns raw as a JSON column value, {} when absent or null
func jsonDoc(raw json.RawMessage) datatypes.JSON {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

func positiveOr(v *int, def int, field string) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v <= 0 {
		return 0, ValidationError("%s must be positive", field)
	}
	return *v, nil
}

func (s *Service) loadTask(db *gorm.DB, id int64) (*model.MassTask, error) {
	var task model.MassTask
	if err := db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("task not found")
		}
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}
	return &task, nil
}

// lockTask reads the task row with FOR UPDATE inside tx
func (s *Service) lockTask(tx *gorm.DB, id int64) (*model.MassTask, error) {
	return s.loadTask(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// CreateTask 创建任务，初始状态 DRAFT
func (s *Service) CreateTask(ctx context.Context, req *CreateTaskRequest) (task *model.MassTask, err error) {
	defer func() { observeOperation(OpCreate, err) }()

	taskNo := strings.TrimSpace(req.TaskNo)
	if taskNo == "" {
		return nil, ValidationError("task_no required")
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		return nil, ValidationError("content_type required")
	}
	if _, err := ParseTargetSpec(req.TargetsSpec); err != nil {
		return nil, err
	}
	if _, err := ParseGrayStrategy(req.GrayStrategy); err != nil {
		return nil, err
	}
	batchSize, err := positiveOr(req.BatchSize, s.opts.DefaultBatchSize, "batch_size")
	if err != nil {
		return nil, err
	}
	qps, err := positiveOr(req.QPSLimit, s.opts.DefaultQPSLimit, "qps_limit")
	if err != nil {
		return nil, err
	}
	concurrency, err := positiveOr(req.ConcurrencyLimit, s.opts.DefaultConcurrency, "concurrency_limit")
	if err != nil {
		return nil, err
	}
	massType := strings.TrimSpace(req.MassType)
	if massType == "" {
		massType = "external"
	}

	db := s.db.WithContext(ctx)

	// task_no 唯一，先查再插，插入时的唯一键冲突同样映射为 Conflict
	var exists int64
	if err := db.Model(&model.MassTask{}).Where("task_no = ?", taskNo).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("check task_no: %w", err)
	}
	if exists > 0 {
		return nil, ConflictError("task_no already exists: %s", taskNo)
	}

	task = &model.MassTask{
		TaskNo:           taskNo,
		Name:             strings.TrimSpace(req.Name),
		MassType:         massType,
		ContentType:      contentType,
		ContentJSON:      jsonDoc(req.ContentJSON),
		TargetsSpec:      jsonDoc(req.TargetsSpec),
		GrayStrategy:     jsonDoc(req.GrayStrategy),
		ReportStat:       jsonDoc(req.ReportStat),
		Status:           model.MassTaskStatusDraft,
		ScheduledAt:      req.ScheduledAt.ptr(),
		QPSLimit:         qps,
		ConcurrencyLimit: concurrency,
		BatchSize:        batchSize,
		AgentID:          req.AgentID,
	}
	if err := db.Create(task).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ConflictError("task_no already exists: %s", taskNo)
		}
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"task_id": task.ID, "task_no": taskNo}).Info("Task created")
	return task, nil
}

// GetTask 查询任务详情
func (s *Service) GetTask(ctx context.Context, id int64) (*TaskView, error) {
	task, err := s.loadTask(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	v := newTaskView(*task)
	return &v, nil
}

// UpdateTask 更新任务，仅 DRAFT/PLANNED 可编辑
func (s *Service) UpdateTask(ctx context.Context, id int64, req *UpdateTaskRequest) (err error) {
	defer func() { observeOperation(OpUpdate, err) }()

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.ContentJSON != nil {
		updates["content_json"] = jsonDoc(req.ContentJSON)
	}
	if req.TargetsSpec != nil {
		if _, err := ParseTargetSpec(req.TargetsSpec); err != nil {
			return err
		}
		updates["targets_spec"] = jsonDoc(req.TargetsSpec)
	}
	if req.GrayStrategy != nil {
		if _, err := ParseGrayStrategy(req.GrayStrategy); err != nil {
			return err
		}
		updates["gray_strategy"] = jsonDoc(req.GrayStrategy)
	}
	if req.ReportStat != nil {
		updates["report_stat"] = jsonDoc(req.ReportStat)
	}
	if req.ScheduledAt.Set {
		updates["scheduled_at"] = req.ScheduledAt.Time.ptr()
	}
	if req.AgentID != nil {
		updates["agent_id"] = req.AgentID
	}
	for field, v := range map[string]*int{
		"qps_limit":         req.QPSLimit,
		"concurrency_limit": req.ConcurrencyLimit,
		"batch_size":        req.BatchSize,
	} {
		if v == nil {
			continue
		}
		if *v <= 0 {
			return ValidationError("%s must be positive", field)
		}
		updates[field] = *v
	}

	if len(updates) == 0 {
		task, err := s.loadTask(s.db.WithContext(ctx), id)
		if err != nil {
			return err
		}
		if !CanApply(OpUpdate, task.Status) {
			return forbidden(OpUpdate, task.Status)
		}
		return nil
	}

	_, err = s.transition(ctx, id, OpUpdate, updates)
	return err
}

// transition applies updates with a compare-and-set on the legal source statuses
func (s *Service) transition(ctx context.Context, id int64, op Operation, updates map[string]interface{}) (*model.MassTask, error) {
	db := s.db.WithContext(ctx)
	if to, ok := resultOf[op]; ok {
		updates["status"] = to
	}

	result := db.Model(&model.MassTask{}).
		Where("id = ? AND status IN ?", id, LegalFrom(op)).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("%s task %d: %w", op, id, result.Error)
	}

	task, err := s.loadTask(db, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		// 未命中：任务状态不允许，或者 MySQL 报告值未变化
		if _, changesStatus := resultOf[op]; changesStatus || !CanApply(op, task.Status) {
			if CanApply(op, task.Status) {
				return nil, ConflictError("task %d changed concurrently", id)
			}
			return nil, forbidden(op, task.Status)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":   id,
		"operation": op,
		"status":    task.Status.Label(),
	}).Info("Task transitioned")
	return task, nil
}

// StartTask PLANNED/PAUSED -> RUNNING，首次启动记录 started_at
func (s *Service) StartTask(ctx context.Context, id int64) (task *model.MassTask, err error) {
	defer func() { observeOperation(OpStart, err) }()
	return s.transition(ctx, id, OpStart, map[string]interface{}{
		"started_at": gorm.Expr("COALESCE(started_at, ?)", s.now()),
	})
}

// PauseTask RUNNING -> PAUSED
func (s *Service) PauseTask(ctx context.Context, id int64) (task *model.MassTask, err error) {
	defer func() { observeOperation(OpPause, err) }()
	return s.transition(ctx, id, OpPause, map[string]interface{}{})
}

// ResumeTask PAUSED -> RUNNING
func (s *Service) ResumeTask(ctx context.Context, id int64) (task *model.MassTask, err error) {
	defer func() { observeOperation(OpResume, err) }()
	return s.transition(ctx, id, OpResume, map[string]interface{}{})
}

// DeleteTask 删除任务及其快照，仅 DRAFT/PLANNED
func (s *Service) DeleteTask(ctx context.Context, id int64) (err error) {
	defer func() { observeOperation(OpDelete, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.lockTask(tx, id)
		if err != nil {
			return err
		}
		if !CanApply(OpDelete, task.Status) {
			return forbidden(OpDelete, task.Status)
		}
		if err := tx.Where("task_id = ?", id).Delete(&model.MassTargetSnapshot{}).Error; err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		if err := tx.Delete(&model.MassTask{}, id).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
	if err == nil {
		s.logger.WithField("task_id", id).Info("Task deleted")
	}
	return err
}

// PlanTask 解析目标、分配波次与批次并重建快照
// 事务内：锁任务行 -> 校验状态 -> 解析 -> 删除旧快照 -> 批量写入 -> 状态置为 PLANNED
func (s *Service) PlanTask(ctx context.Context, id int64) (result *PlanResult, err error) {
	start := time.Now()
	defer func() {
		observeOperation(OpPlan, err)
		planDuration.Observe(time.Since(start).Seconds())
	}()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 锁定任务并校验状态
		task, err := s.lockTask(tx, id)
		if err != nil {
			return err
		}
		if !CanApply(OpPlan, task.Status) {
			return forbidden(OpPlan, task.Status)
		}

		// 2. 解析目标人群
		spec, err := ParseTargetSpec(task.TargetsSpec)
		if err != nil {
			return err
		}
		gray, err := ParseGrayStrategy(task.GrayStrategy)
		if err != nil {
			return err
		}
		recipients, err := NewResolver(s.sourceFor(tx), s.opts.DefaultTargetLimit).Resolve(ctx, spec)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return ValidationError("no recipients selected")
		}

		// 3. 分配波次与批次
		batchSize := task.BatchSize
		if batchSize <= 0 {
			batchSize = s.opts.DefaultBatchSize
		}
		counts := AllocateWaves(len(recipients), gray.Waves)
		placements := BuildSnapshots(recipients, counts, batchSize)

		// 4. 重建快照
		if err := tx.Where("task_id = ?", id).Delete(&model.MassTargetSnapshot{}).Error; err != nil {
			return fmt.Errorf("clear snapshots: %w", err)
		}
		rows := make([]model.MassTargetSnapshot, len(placements))
		for i, p := range placements {
			rows[i] = model.MassTargetSnapshot{
				TaskID:      id,
				RecipientID: p.RecipientID,
				WaveNo:      p.WaveNo,
				BatchNo:     p.BatchNo,
				State:       model.SnapshotStatePending,
			}
		}
		var inserted int64
		if len(rows) > 0 {
			res := tx.CreateInBatches(rows, s.opts.InsertChunkSize)
			if res.Error != nil {
				return fmt.Errorf("insert snapshots: %w", res.Error)
			}
			inserted = res.RowsAffected
		}

		// 5. 更新状态
		if err := tx.Model(&model.MassTask{}).Where("id = ?", id).
			Update("status", model.MassTaskStatusPlanned).Error; err != nil {
			return fmt.Errorf("update task status: %w", err)
		}

		result = &PlanResult{
			TaskID:    id,
			Status:    model.MassTaskStatusPlanned.Label(),
			Total:     len(recipients),
			Inserted:  inserted,
			BatchSize: batchSize,
			Waves:     WaveSizes(counts),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	plannedRecipients.Add(float64(result.Inserted))
	s.logger.WithFields(logrus.Fields{
		"task_id":  id,
		"total":    result.Total,
		"waves":    len(result.Waves),
		"duration": time.Since(start).String(),
	}).Info("Task planned")
	return result, nil
}

// RecallTask 撤回：未发送的 pending 快照置为 recalled，任务置为 RECALLED
func (s *Service) RecallTask(ctx context.Context, id int64) (result *RecallResult, err error) {
	defer func() { observeOperation(OpRecall, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.lockTask(tx, id)
		if err != nil {
			return err
		}
		if !CanApply(OpRecall, task.Status) {
			return forbidden(OpRecall, task.Status)
		}

		res := tx.Model(&model.MassTargetSnapshot{}).
			Where("task_id = ? AND state = ?", id, model.SnapshotStatePending).
			Update("state", model.SnapshotStateRecalled)
		if res.Error != nil {
			return fmt.Errorf("recall snapshots: %w", res.Error)
		}

		if err := tx.Model(&model.MassTask{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":      model.MassTaskStatusRecalled,
			"finished_at": s.now(),
		}).Error; err != nil {
			return fmt.Errorf("update task status: %w", err)
		}

		result = &RecallResult{
			TaskID:   id,
			Status:   model.MassTaskStatusRecalled.Label(),
			Recalled: res.RowsAffected,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snapshotTransitions.WithLabelValues(string(model.SnapshotStateRecalled)).Add(float64(result.Recalled))
	s.logger.WithFields(logrus.Fields{"task_id": id, "recalled": result.Recalled}).Info("Task recalled")
	return result, nil
}

// RetryFailed failed 快照重置为 pending 并清空错误，不校验任务状态
func (s *Service) RetryFailed(ctx context.Context, id int64) (result *RetryResult, err error) {
	defer func() { observeOperation(OpRetry, err) }()

	db := s.db.WithContext(ctx)
	if _, err := s.loadTask(db, id); err != nil {
		return nil, err
	}

	res := db.Model(&model.MassTargetSnapshot{}).
		Where("task_id = ? AND state = ?", id, model.SnapshotStateFailed).
		Updates(map[string]interface{}{
			"state":      model.SnapshotStatePending,
			"last_error": nil,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("retry failed snapshots: %w", res.Error)
	}

	snapshotTransitions.WithLabelValues(string(model.SnapshotStatePending)).Add(float64(res.RowsAffected))
	s.logger.WithFields(logrus.Fields{"task_id": id, "retried": res.RowsAffected}).Info("Failed snapshots reset")
	return &RetryResult{TaskID: id, Retried: res.RowsAffected}, nil
}
