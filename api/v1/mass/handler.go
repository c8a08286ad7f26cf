package mass

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"wecom_ops/api/v1/middleware"
	"wecom_ops/internal/audit"
	"wecom_ops/internal/cache"
	"wecom_ops/internal/httpx"
	"wecom_ops/internal/mass"

	"github.com/gin-gonic/gin"
)

// IdempotencyHeader deduplicates task creation retries
const IdempotencyHeader = "Idempotency-Key"

const idempotencyTTL = 24 * time.Hour

// Handler 群发任务API处理器
type Handler struct {
	service   *mass.Service
	estimator *mass.Estimator
	audit     *audit.Recorder
	marks     *cache.Store
}

// NewHandler 创建群发任务API处理器; estimator, recorder and marks may be nil
func NewHandler(service *mass.Service, estimator *mass.Estimator, recorder *audit.Recorder, marks *cache.Store) *Handler {
	return &Handler{
		service:   service,
		estimator: estimator,
		audit:     recorder,
		marks:     marks,
	}
}

// Register mounts the campaign routes on g
func (h *Handler) Register(g *gin.RouterGroup) {
	tasks := g.Group("/tasks")
	{
		tasks.POST("", h.Create)
		tasks.GET("", h.List)
		tasks.GET("/:id", h.Get)
		tasks.PATCH("/:id", h.Update)
		tasks.DELETE("/:id", h.Delete)
		tasks.POST("/:id/plan", h.Plan)
		tasks.GET("/:id/targets", h.Targets)
		tasks.GET("/:id/logs", h.Logs)
		tasks.POST("/:id/retry_failed", h.RetryFailed)
		tasks.POST("/:id/start", h.Start)
		tasks.POST("/:id/pause", h.Pause)
		tasks.POST("/:id/resume", h.Resume)
		tasks.POST("/:id/recall", h.Recall)
		tasks.GET("/:id/stats", h.Stats)
		tasks.POST("/:id/run", h.Run)
		tasks.POST("/:id/promote", h.Run)
	}
	g.POST("/targets/estimate", h.Estimate)
	g.POST("/uploads", h.Upload)
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrValidation("invalid task id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) record(c *gin.Context, action string, id int64, err error, detail interface{}) {
	result := audit.ResultOK
	if err != nil {
		result = audit.ResultFailed
		detail = gin.H{"error": err.Error()}
	}
	h.audit.Record(c.Request.Context(), audit.Entry{
		Operator:     middleware.Operator(c),
		Action:       "mass." + action,
		ResourceType: "mass_task",
		ResourceID:   strconv.FormatInt(id, 10),
		Result:       result,
		Detail:       detail,
		TraceID:      c.GetString(httpx.TraceIDKey),
	})
}

// Create 创建任务
// POST /api/v1/mass/tasks
func (h *Handler) Create(c *gin.Context) {
	var req mass.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrValidation("invalid request body: "+err.Error()))
		return
	}

	ctx := c.Request.Context()
	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if key != "" {
		first, err := h.marks.TryMarkOnce(ctx, "mass:create:"+key, idempotencyTTL)
		if err != nil {
			httpx.FailErr(c, httpx.ErrInternalError("idempotency check failed", err))
			return
		}
		if !first {
			httpx.FailErr(c, httpx.ErrConflict("duplicate request"))
			return
		}
	}

	task, err := h.service.CreateTask(ctx, &req)
	if err != nil {
		if key != "" {
			_ = h.marks.Unmark(ctx, "mass:create:"+key)
		}
		fail(c, err, "failed to create task")
		return
	}

	h.record(c, "create", task.ID, nil, gin.H{"task_no": task.TaskNo})
	httpx.Created(c, gin.H{"task_id": task.ID})
}

// List 任务列表
// GET /api/v1/mass/tasks
func (h *Handler) List(c *gin.Context) {
	var q mass.ListTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpx.FailErr(c, httpx.ErrValidation("invalid query: "+err.Error()))
		return
	}
	page, err := h.service.ListTasks(c.Request.Context(), &q)
	if err != nil {
		fail(c, err, "failed to list tasks")
		return
	}
	httpx.OKItems(c, page.Items, page.Total, page.Page, page.Size)
}

// Get 任务详情
// GET /api/v1/mass/tasks/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.service.GetTask(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "failed to get task")
		return
	}
	httpx.OK(c, task)
}

// Update 更新任务
// PATCH /api/v1/mass/tasks/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req mass.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrValidation("invalid request body: "+err.Error()))
		return
	}

	err := h.service.UpdateTask(c.Request.Context(), id, &req)
	h.record(c, "update", id, err, nil)
	if err != nil {
		fail(c, err, "failed to update task")
		return
	}
	httpx.OK(c, gin.H{"task_id": id, "updated": true})
}

// Delete 删除任务
// DELETE /api/v1/mass/tasks/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	err := h.service.DeleteTask(c.Request.Context(), id)
	h.record(c, "delete", id, err, nil)
	if err != nil {
		fail(c, err, "failed to delete task")
		return
	}
	httpx.OK(c, gin.H{"task_id": id, "deleted": true})
}

// Plan 规划任务
// POST /api/v1/mass/tasks/:id/plan
// plan.waves 与 gray_strategy 的波次一一对应, 0 人的波次也会返回 (size=0)
func (h *Handler) Plan(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	res, err := h.service.PlanTask(c.Request.Context(), id)
	if err != nil {
		h.record(c, "plan", id, err, nil)
		fail(c, err, "failed to plan task")
		return
	}
	h.record(c, "plan", id, nil, gin.H{"total": res.Total, "waves": len(res.Waves)})
	httpx.OK(c, gin.H{"plan": res})
}

// Targets 快照列表
// GET /api/v1/mass/tasks/:id/targets
func (h *Handler) Targets(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var q mass.ListTargetsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpx.FailErr(c, httpx.ErrValidation("invalid query: "+err.Error()))
		return
	}
	page, err := h.service.ListTargets(c.Request.Context(), id, &q)
	if err != nil {
		fail(c, err, "failed to list targets")
		return
	}
	httpx.OKItems(c, page.Items, page.Total, page.Page, page.Size)
}

// Logs 任务日志
// GET /api/v1/mass/tasks/:id/logs
func (h *Handler) Logs(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var q mass.ListLogsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpx.FailErr(c, httpx.ErrValidation("invalid query: "+err.Error()))
		return
	}
	page, err := h.service.ListLogs(c.Request.Context(), id, &q)
	if err != nil {
		fail(c, err, "failed to list logs")
		return
	}
	httpx.OKItems(c, page.Items, page.Total, page.Page, page.Size)
}

// RetryFailed 重试失败目标
// POST /api/v1/mass/tasks/:id/retry_failed
func (h *Handler) RetryFailed(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	res, err := h.service.RetryFailed(c.Request.Context(), id)
	if err != nil {
		h.record(c, "retry_failed", id, err, nil)
		fail(c, err, "failed to retry task")
		return
	}
	h.record(c, "retry_failed", id, nil, res)
	httpx.OK(c, res)
}

// Start 启动任务
// POST /api/v1/mass/tasks/:id/start
func (h *Handler) Start(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	_, err := h.service.StartTask(ctx, id)
	h.record(c, "start", id, err, nil)
	if err != nil {
		fail(c, err, "failed to start task")
		return
	}
	task, err := h.service.GetTask(ctx, id)
	if err != nil {
		fail(c, err, "failed to get task")
		return
	}
	httpx.OK(c, task)
}

// Pause 暂停任务
// POST /api/v1/mass/tasks/:id/pause
func (h *Handler) Pause(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.service.PauseTask(c.Request.Context(), id)
	h.record(c, "pause", id, err, nil)
	if err != nil {
		fail(c, err, "failed to pause task")
		return
	}
	httpx.OK(c, gin.H{"task_id": id, "status": task.Status.Label()})
}

// Resume 恢复任务
// POST /api/v1/mass/tasks/:id/resume
func (h *Handler) Resume(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.service.ResumeTask(c.Request.Context(), id)
	h.record(c, "resume", id, err, nil)
	if err != nil {
		fail(c, err, "failed to resume task")
		return
	}
	httpx.OK(c, gin.H{"task_id": id, "status": task.Status.Label()})
}

// Recall 撤回任务
// POST /api/v1/mass/tasks/:id/recall
func (h *Handler) Recall(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	res, err := h.service.RecallTask(c.Request.Context(), id)
	if err != nil {
		h.record(c, "recall", id, err, nil)
		fail(c, err, "failed to recall task")
		return
	}
	h.record(c, "recall", id, nil, res)
	httpx.OK(c, res)
}

// Stats 任务统计
// GET /api/v1/mass/tasks/:id/stats
func (h *Handler) Stats(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		fail(c, err, "failed to load stats")
		return
	}
	httpx.OK(c, stats)
}

// Run 推进一个波次
// POST /api/v1/mass/tasks/:id/run
func (h *Handler) Run(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	res, err := h.service.AdvanceWave(c.Request.Context(), id)
	if err != nil {
		h.record(c, "run", id, err, nil)
		fail(c, err, "failed to run task")
		return
	}
	h.record(c, "run", id, nil, gin.H{"wave_no": res.WaveNo, "changed_to_done": res.ChangedToDone})
	httpx.OK(c, res)
}

// Estimate 人群预估，请求体为 {"targets_spec": {...}} 或 targets_spec 本身
// POST /api/v1/mass/targets/estimate
func (h *Handler) Estimate(c *gin.Context) {
	if h.estimator == nil {
		httpx.FailErr(c, httpx.ErrNotFound("estimate not available"))
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		httpx.FailErr(c, httpx.ErrValidation("invalid request body"))
		return
	}
	spec := json.RawMessage(bytes.TrimSpace(body))
	if len(spec) > 0 {
		var wrapper struct {
			TargetsSpec json.RawMessage `json:"targets_spec"`
		}
		if err := json.Unmarshal(spec, &wrapper); err == nil && wrapper.TargetsSpec != nil {
			spec = wrapper.TargetsSpec
		}
	}

	res, err := h.estimator.Estimate(c.Request.Context(), spec)
	if err != nil {
		fail(c, err, "failed to estimate targets")
		return
	}
	httpx.OK(c, res)
}

// Upload 上传手机号清单
// POST /api/v1/mass/uploads
func (h *Handler) Upload(c *gin.Context) {
	var req mass.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrValidation("invalid request body: "+err.Error()))
		return
	}
	res, err := h.service.CreateUpload(c.Request.Context(), &req)
	if err != nil {
		fail(c, err, "failed to store upload")
		return
	}
	h.audit.Record(c.Request.Context(), audit.Entry{
		Operator:     middleware.Operator(c),
		Action:       "mass.upload",
		ResourceType: "mobile_upload",
		ResourceID:   strconv.FormatInt(res.UploadID, 10),
		Detail:       gin.H{"valid": res.Valid, "reachable": res.Reachable},
		TraceID:      c.GetString(httpx.TraceIDKey),
	})
	httpx.Created(c, res)
}
