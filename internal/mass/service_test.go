package mass

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"wecom_ops/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTask_Defaults(t *testing.T) {
	svc, _ := newTestService(t)

	task := createTask(t, svc, "T-1", "", "")
	assert.Equal(t, model.MassTaskStatusDraft, task.Status)
	assert.Equal(t, "external", task.MassType)
	assert.Equal(t, 2, task.BatchSize)
	assert.Equal(t, 10, task.QPSLimit)
	assert.Equal(t, 5, task.ConcurrencyLimit)
	assert.JSONEq(t, `{}`, string(task.TargetsSpec))
}

func TestCreateTask_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	zero := 0

	tests := []struct {
		name string
		req  CreateTaskRequest
		msg  string
	}{
		{"missing task_no", CreateTaskRequest{ContentType: "text"}, "task_no required"},
		{"missing content_type", CreateTaskRequest{TaskNo: "X"}, "content_type required"},
		{"zero batch", CreateTaskRequest{TaskNo: "X", ContentType: "text", BatchSize: &zero}, "batch_size must be positive"},
		{"bad mode", CreateTaskRequest{TaskNo: "X", ContentType: "text", TargetsSpec: []byte(`{"mode":"weird"}`)}, "unsupported targets_spec mode: weird"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTask(ctx, &tt.req)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCreateTask_DuplicateTaskNo(t *testing.T) {
	svc, _ := newTestService(t)
	createTask(t, svc, "DUP", "", "")

	_, err := svc.CreateTask(context.Background(), &CreateTaskRequest{TaskNo: "DUP", ContentType: "text"})
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestPlanTask_WavesAndBatches(t *testing.T) {
	svc, gdb := newTestService(t)
	seedPlainContacts(t, gdb, 10)
	task := createTask(t, svc, "P-1", "", `{"mode":"percent","waves":[{"pct":30},{"pct":70}]}`)

	res, err := svc.PlanTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)
	assert.EqualValues(t, 10, res.Inserted)
	assert.Equal(t, []WaveSize{{1, 3}, {2, 7}}, res.Waves)
	assert.Equal(t, "PLANNED", res.Status)
	assert.Equal(t, model.MassTaskStatusPlanned, taskStatus(t, gdb, task.ID))

	rows := snapshotsOf(t, gdb, task.ID)
	require.Len(t, rows, 10)
	assert.Equal(t, "wm001", rows[0].RecipientID)
	assert.Equal(t, []int{1, 1, 2}, []int{rows[0].BatchNo, rows[1].BatchNo, rows[2].BatchNo})
	assert.Equal(t, 2, rows[3].WaveNo)
	assert.Equal(t, 4, rows[9].BatchNo)
	for _, r := range rows {
		assert.Equal(t, model.SnapshotStatePending, r.State)
	}
}

func TestPlanTask_ReplanReplacesSnapshots(t *testing.T) {
	svc, gdb := newTestService(t)
	seedPlainContacts(t, gdb, 4)
	task := createTask(t, svc, "P-2", "", "")
	ctx := context.Background()

	_, err := svc.PlanTask(ctx, task.ID)
	require.NoError(t, err)
	_, err = svc.PlanTask(ctx, task.ID)
	require.NoError(t, err)

	assert.Len(t, snapshotsOf(t, gdb, task.ID), 4)
}

func TestPlanTask_NoRecipients(t *testing.T) {
	svc, gdb := newTestService(t)
	task := createTask(t, svc, "P-3", `{"mode":"by_tag_ids","tag_ids":"nobody"}`, "")

	_, err := svc.PlanTask(context.Background(), task.ID)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "no recipients selected", err.Error())
	assert.Equal(t, model.MassTaskStatusDraft, taskStatus(t, gdb, task.ID))
	assert.Empty(t, snapshotsOf(t, gdb, task.ID))
}

func TestPlanTask_Forbidden(t *testing.T) {
	svc, gdb := newTestService(t)
	seedPlainContacts(t, gdb, 2)
	task := createTask(t, svc, "P-4", "", "")
	setStatus(t, gdb, task.ID, model.MassTaskStatusRunning)

	_, err := svc.PlanTask(context.Background(), task.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = svc.PlanTask(context.Background(), 9999)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestPlanTask_UnknownModeStored(t *testing.T) {
	svc, gdb := newTestService(t)
	task := createTask(t, svc, "P-5", "", "")
	require.NoError(t, gdb.Model(&model.MassTask{}).Where("id = ?", task.ID).
		Update("targets_spec", `{"mode":"everyone"}`).Error)

	_, err := svc.PlanTask(context.Background(), task.ID)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "unsupported targets_spec mode: everyone")
}

func TestLifecycle_StartPauseResume(t *testing.T) {
	svc, gdb := newTestService(t)
	seedPlainContacts(t, gdb, 3)
	task := createTask(t, svc, "L-1", "", "")
	ctx := context.Background()

	_, err := svc.StartTask(ctx, task.ID)
	assert.Equal(t, KindForbidden, KindOf(err), "draft cannot start")

	_, err = svc.PlanTask(ctx, task.ID)
	require.NoError(t, err)

	started, err := svc.StartTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MassTaskStatusRunning, started.Status)
	require.NotNil(t, started.StartedAt)
	firstStart := *started.StartedAt

	_, err = svc.ResumeTask(ctx, task.ID)
	assert.Equal(t, KindForbidden, KindOf(err), "running cannot resume")

	paused, err := svc.PauseTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MassTaskStatusPaused, paused.Status)

	_, err = svc.PauseTask(ctx, task.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	resumed, err := svc.ResumeTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MassTaskStatusRunning, resumed.Status)

	_, err = svc.PauseTask(ctx, task.ID)
	require.NoError(t, err)
	restarted, err := svc.StartTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MassTaskStatusRunning, restarted.Status)
	assert.True(t, firstStart.Equal(*restarted.StartedAt))

	_, err = svc.PauseTask(ctx, 9999)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestUpdateTask(t *testing.T) {
	svc, gdb := newTestService(t)
	task := createTask(t, svc, "U-1", "", "")
	ctx := context.Background()

	name := "spring sale"
	batch := 50
	require.NoError(t, svc.UpdateTask(ctx, task.ID, &UpdateTaskRequest{Name: &name, BatchSize: &batch}))

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "spring sale", got.Name)
	assert.Equal(t, 50, got.BatchSize)
	assert.Equal(t, "DRAFT", got.StatusLabel)

	err = svc.UpdateTask(ctx, task.ID, &UpdateTaskRequest{TargetsSpec: []byte(`{"mode":"UPLOAD"}`)})
	assert.Equal(t, KindValidation, KindOf(err))

	setStatus(t, gdb, task.ID, model.MassTaskStatusRunning)
	err = svc.UpdateTask(ctx, task.ID, &UpdateTaskRequest{Name: &name})
	assert.Equal(t, KindForbidden, KindOf(err))
	err = svc.UpdateTask(ctx, task.ID, &UpdateTaskRequest{})
	assert.Equal(t, KindForbidden, KindOf(err))

	err = svc.UpdateTask(ctx, 9999, &UpdateTaskRequest{Name: &name})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestUpdateTask_ScheduledAtNullClears(t *testing.T) {
	svc, _ := newTestService(t)
	task := createTask(t, svc, "U-2", "", "")
	ctx := context.Background()

	decode := func(body string) *UpdateTaskRequest {
		var req UpdateTaskRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req))
		return &req
	}

	require.NoError(t, svc.UpdateTask(ctx, task.ID, decode(`{"scheduled_at":"2026-03-01 09:30"}`)))
	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, got.ScheduledAt.Equal(time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)), got.ScheduledAt.String())

	// absent key leaves the schedule alone
	require.NoError(t, svc.UpdateTask(ctx, task.ID, decode(`{"name":"renamed"}`)))
	got, err = svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ScheduledAt)

	require.NoError(t, svc.UpdateTask(ctx, task.ID, decode(`{"scheduled_at":null}`)))
	got, err = svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ScheduledAt)
}

func TestDeleteTask(t *testing.T) {
	svc, gdb := newTestService(t)
	seedPlainContacts(t, gdb, 3)
	ctx := context.Background()

	planned := createTask(t, svc, "D-1", "", "")
	_, err := svc.PlanTask(ctx, planned.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTask(ctx, planned.ID))
	assert.Empty(t, snapshotsOf(t, gdb, planned.ID))
	_, err = svc.GetTask(ctx, planned.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	running := createTask(t, svc, "D-2", "", "")
	setStatus(t, gdb, running.ID, model.MassTaskStatusRunning)
	assert.Equal(t, KindForbidden, KindOf(svc.DeleteTask(ctx, running.ID)))

	assert.Equal(t, KindNotFound, KindOf(svc.DeleteTask(ctx, 9999)))
}

func TestRecallTask_OnlyPending(t *testing.T) {
	svc, gdb := newTestService(t)
	seedPlainContacts(t, gdb, 6)
	task := createTask(t, svc, "R-1", "", "")
	ctx := context.Background()

	_, err := svc.PlanTask(ctx, task.ID)
	require.NoError(t, err)
	_, err = svc.StartTask(ctx, task.ID)
	require.NoError(t, err)

	rows := snapshotsOf(t, gdb, task.ID)
	require.NoError(t, gdb.Model(&model.MassTargetSnapshot{}).Where("id IN ?", []int64{rows[0].ID, rows[1].ID}).
		Update("state", model.SnapshotStateDone).Error)
	require.NoError(t, gdb.Model(&model.MassTargetSnapshot{}).Where("id = ?", rows[2].ID).
		Update("state", model.SnapshotStateFailed).Error)

	res, err := svc.RecallTask(ctx, task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Recalled)
	assert.Equal(t, "RECALLED", res.Status)

	stats, err := svc.Stats(ctx, task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Done)
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 3, stats.Recalled)
	assert.EqualValues(t, 0, stats.Pending)
	assert.EqualValues(t, 6, stats.Total)

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MassTaskStatusRecalled, got.Status)
	assert.NotNil(t, got.FinishedAt)

	_, err = svc.RecallTask(ctx, task.ID)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestRecallTask_DraftForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	task := createTask(t, svc, "R-2", "", "")

	_, err := svc.RecallTask(context.Background(), task.ID)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestRetryFailed(t *testing.T) {
	svc, gdb := newTestService(t)
	seedPlainContacts(t, gdb, 4)
	task := createTask(t, svc, "F-1", "", "")
	ctx := context.Background()

	_, err := svc.PlanTask(ctx, task.ID)
	require.NoError(t, err)

	rows := snapshotsOf(t, gdb, task.ID)
	require.NoError(t, gdb.Model(&model.MassTargetSnapshot{}).Where("id IN ?", []int64{rows[0].ID, rows[3].ID}).
		Updates(map[string]interface{}{"state": model.SnapshotStateFailed, "last_error": "rate limited"}).Error)

	// 终态任务同样允许重试
	setStatus(t, gdb, task.ID, model.MassTaskStatusRecalled)

	res, err := svc.RetryFailed(ctx, task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Retried)

	for _, r := range snapshotsOf(t, gdb, task.ID) {
		assert.Equal(t, model.SnapshotStatePending, r.State)
		assert.Nil(t, r.LastError)
	}

	res, err = svc.RetryFailed(ctx, task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Retried)

	_, err = svc.RetryFailed(ctx, 9999)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStats_AllStatesPresent(t *testing.T) {
	svc, _ := newTestService(t)
	task := createTask(t, svc, "S-1", "", "")

	stats, err := svc.Stats(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStats{TaskID: task.ID}, *stats)

	_, err = svc.Stats(context.Background(), 9999)
	assert.Equal(t, KindNotFound, KindOf(err))
}
