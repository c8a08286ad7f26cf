package mass

import (
	"context"
	"time"

	"wecom_ops/internal/model"

	"github.com/sirupsen/logrus"
)

// Executor 波次推进执行器，周期扫描 RUNNING 任务并逐波推进
type Executor struct {
	svc      *Service
	interval time.Duration
	logger   *logrus.Entry
}

// NewExecutor 创建执行器
func NewExecutor(svc *Service, interval time.Duration, logger *logrus.Entry) *Executor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{
		svc:      svc,
		interval: interval,
		logger:   logger.WithField("component", "executor"),
	}
}

// RunOnce 执行一次扫描，每个 RUNNING 任务推进一个波次
func (e *Executor) RunOnce(ctx context.Context) error {
	var ids []int64
	if err := e.svc.db.WithContext(ctx).Model(&model.MassTask{}).
		Where("status = ?", model.MassTaskStatusRunning).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		e.logger.WithError(err).Error("Failed to query running tasks")
		return err
	}

	if len(ids) == 0 {
		e.logger.Debug("No running tasks")
		return nil
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := e.svc.AdvanceWave(ctx, id)
		if err != nil {
			// 扫描后被暂停或撤回的任务直接跳过
			if KindOf(err) == KindForbidden || KindOf(err) == KindNotFound {
				e.logger.WithField("task_id", id).WithError(err).Debug("Task skipped")
				continue
			}
			e.logger.WithField("task_id", id).WithError(err).Error("Failed to advance wave")
			continue
		}
		fields := logrus.Fields{"task_id": id, "wave_no": res.WaveNo, "status": res.Status}
		if res.Finished {
			e.logger.WithFields(fields).Info("Task finished")
			continue
		}
		e.logger.WithFields(fields).Info("Task advanced")
	}
	return nil
}

// RunLoop 循环执行直到 ctx 结束
func (e *Executor) RunLoop(ctx context.Context) {
	e.logger.WithField("interval", e.interval.String()).Info("Starting executor loop")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// 立即执行一次
	if err := e.RunOnce(ctx); err != nil {
		e.logger.WithError(err).Warn("Initial run failed")
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Executor loop stopped")
			return
		case <-ticker.C:
			if err := e.RunOnce(ctx); err != nil {
				e.logger.WithError(err).Warn("Run failed")
			}
		}
	}
}
