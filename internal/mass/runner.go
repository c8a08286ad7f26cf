package mass

import (
	"context"
	"database/sql"
	"fmt"

	"wecom_ops/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var unfinishedStates = []model.SnapshotState{
	model.SnapshotStatePending,
	model.SnapshotStatePlanned,
	model.SnapshotStateRunning,
}

func lowestUnfinishedWave(tx *gorm.DB, taskID int64) (int, error) {
	var wave sql.NullInt64
	err := tx.Model(&model.MassTargetSnapshot{}).
		Where("task_id = ? AND state IN ?", taskID, unfinishedStates).
		Select("MIN(wave_no)").
		Scan(&wave).Error
	if err != nil {
		return 0, fmt.Errorf("find current wave: %w", err)
	}
	if !wave.Valid {
		return 0, nil
	}
	return int(wave.Int64), nil
}

// AdvanceWave promotes the lowest unfinished wave of a RUNNING task to done.
// Delivery itself happens elsewhere; this records a wave as delivered.
// When no unfinished wave remains the task becomes FINISHED.
func (s *Service) AdvanceWave(ctx context.Context, id int64) (result *AdvanceResult, err error) {
	defer func() { observeOperation(OpRun, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.lockTask(tx, id)
		if err != nil {
			return err
		}
		if !CanApply(OpRun, task.Status) {
			return forbidden(OpRun, task.Status)
		}

		// 1. 当前波次
		wave, err := lowestUnfinishedWave(tx, id)
		if err != nil {
			return err
		}

		result = &AdvanceResult{TaskID: id, WaveNo: wave}

		// 2. 推进当前波次
		if wave > 0 {
			res := tx.Model(&model.MassTargetSnapshot{}).
				Where("task_id = ? AND wave_no = ? AND state IN ?", id, wave, unfinishedStates).
				Update("state", model.SnapshotStateDone)
			if res.Error != nil {
				return fmt.Errorf("promote wave %d: %w", wave, res.Error)
			}
			result.ChangedToDone = res.RowsAffected

			next, err := lowestUnfinishedWave(tx, id)
			if err != nil {
				return err
			}
			wave = next
		}

		// 3. 无剩余波次则完成
		if wave == 0 {
			if err := tx.Model(&model.MassTask{}).Where("id = ?", id).Updates(map[string]interface{}{
				"status":      model.MassTaskStatusFinished,
				"finished_at": s.now(),
			}).Error; err != nil {
				return fmt.Errorf("finish task: %w", err)
			}
			task.Status = model.MassTaskStatusFinished
		}
		result.Status = task.Status.Label()
		result.Finished = Terminal(task.Status)

		if result.WaveNo > 0 {
			if result.ByWave, err = countByState(tx, id, result.WaveNo); err != nil {
				return err
			}
		} else {
			result.ByWave = TaskStats{TaskID: id}
		}
		result.ByAll, err = countByState(tx, id, 0)
		return err
	})
	if err != nil {
		return nil, err
	}

	snapshotTransitions.WithLabelValues(string(model.SnapshotStateDone)).Add(float64(result.ChangedToDone))
	s.logger.WithFields(logrus.Fields{
		"task_id":         id,
		"wave_no":         result.WaveNo,
		"changed_to_done": result.ChangedToDone,
		"status":          result.Status,
	}).Info("Wave advanced")
	return result, nil
}
