// Package audit records operator actions against campaign resources.
package audit

import (
	"context"
	"encoding/json"

	"wecom_ops/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Entry is one audited action
type Entry struct {
	Operator     string
	Action       string
	ResourceType string
	ResourceID   string
	Result       string
	Detail       interface{}
	TraceID      string
}

// Recorder writes entries to operation_log. Write failures are logged, never returned to the caller.
type Recorder struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewRecorder creates a recorder; a nil db yields a recorder that only logs
func NewRecorder(db *gorm.DB, logger *logrus.Entry) *Recorder {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Recorder{db: db, logger: logger.WithField("component", "audit")}
}

// Record persists e
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	if e.Operator == "" {
		e.Operator = "anonymous"
	}
	if e.Result == "" {
		e.Result = ResultOK
	}

	row := model.OperationLog{
		Operator:     e.Operator,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Result:       e.Result,
		TraceID:      e.TraceID,
	}
	if e.Detail != nil {
		if b, err := json.Marshal(e.Detail); err == nil {
			s := string(b)
			row.Detail = &s
		}
	}

	fields := logrus.Fields{
		"operator": e.Operator,
		"action":   e.Action,
		"resource": e.ResourceType + "/" + e.ResourceID,
		"result":   e.Result,
		"trace_id": e.TraceID,
	}
	if r.db == nil {
		r.logger.WithFields(fields).Info("Operation")
		return
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.logger.WithFields(fields).WithError(err).Warn("Failed to write operation log")
	}
}
