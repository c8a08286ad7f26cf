package mass

import "wecom_ops/internal/model"

// Operation names a task lifecycle operation
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpPlan   Operation = "plan"
	OpDelete Operation = "delete"
	OpStart  Operation = "start"
	OpPause  Operation = "pause"
	OpResume Operation = "resume"
	OpRecall Operation = "recall"
	OpRun    Operation = "run"
	OpRetry  Operation = "retry_failed"
)

// legalFrom is the transition table: the statuses each operation may be applied in.
// retry_failed carries no status guard and is absent on purpose.
var legalFrom = map[Operation][]model.MassTaskStatus{
	OpUpdate: {model.MassTaskStatusDraft, model.MassTaskStatusPlanned},
	OpPlan:   {model.MassTaskStatusDraft, model.MassTaskStatusPlanned},
	OpDelete: {model.MassTaskStatusDraft, model.MassTaskStatusPlanned},
	OpStart:  {model.MassTaskStatusPlanned, model.MassTaskStatusPaused},
	OpPause:  {model.MassTaskStatusRunning},
	OpResume: {model.MassTaskStatusPaused},
	OpRecall: {model.MassTaskStatusPlanned, model.MassTaskStatusRunning, model.MassTaskStatusPaused},
	OpRun:    {model.MassTaskStatusRunning},
}

// resultOf is the status an operation leaves the task in; absent means unchanged
var resultOf = map[Operation]model.MassTaskStatus{
	OpPlan:   model.MassTaskStatusPlanned,
	OpStart:  model.MassTaskStatusRunning,
	OpPause:  model.MassTaskStatusPaused,
	OpResume: model.MassTaskStatusRunning,
	OpRecall: model.MassTaskStatusRecalled,
}

var forbiddenMessages = map[Operation]string{
	OpUpdate: "task not editable in current status",
	OpPlan:   "task not plannable in current status",
	OpDelete: "task not deletable in current status",
	OpStart:  "task not in planned or paused state",
	OpPause:  "task not running",
	OpResume: "task not paused",
	OpRecall: "task not recallable",
	OpRun:    "task not running",
}

// CanApply reports whether op is legal for a task in status from
func CanApply(op Operation, from model.MassTaskStatus) bool {
	allowed, guarded := legalFrom[op]
	if !guarded {
		return op == OpRetry
	}
	for _, s := range allowed {
		if s == from {
			return true
		}
	}
	return false
}

// LegalFrom returns the statuses op may be applied in
func LegalFrom(op Operation) []model.MassTaskStatus {
	return legalFrom[op]
}

// Terminal reports whether no operation can move a task out of s
func Terminal(s model.MassTaskStatus) bool {
	return s == model.MassTaskStatusFinished || s == model.MassTaskStatusRecalled
}

func forbidden(op Operation, from model.MassTaskStatus) error {
	msg, ok := forbiddenMessages[op]
	if !ok {
		msg = "operation not allowed in current status"
	}
	return ForbiddenError("%s (status=%s)", msg, from.Label())
}
