package mass

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"wecom_ops/internal/db/dbtest"
	"wecom_ops/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb := dbtest.Open(t)
	svc := NewService(gdb, Options{
		DefaultBatchSize:   2,
		DefaultQPSLimit:    10,
		DefaultConcurrency: 5,
		DefaultTargetLimit: 1000,
		InsertChunkSize:    3,
	}, quietLogger())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local) }
	return svc, gdb
}

type contactSeed struct {
	id      string
	name    string
	unionID string
	owner   string
	store   string
	brand   string
	tags    []string
}

func seedContacts(t *testing.T, gdb *gorm.DB, seeds ...contactSeed) {
	t.Helper()
	for _, s := range seeds {
		c := model.ExtContact{
			ExternalUserID: s.id,
			Name:           s.name,
			FollowUserID:   s.owner,
			StoreID:        s.store,
			BrandID:        s.brand,
		}
		if s.unionID != "" {
			u := s.unionID
			c.UnionID = &u
		}
		require.NoError(t, gdb.Create(&c).Error)
		for _, tag := range s.tags {
			require.NoError(t, gdb.Create(&model.ExtContactTag{ExternalUserID: s.id, TagID: tag}).Error)
		}
	}
}

// seedPlainContacts creates n contacts named wm001..
func seedPlainContacts(t *testing.T, gdb *gorm.DB, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("wm%03d", i+1)
		seedContacts(t, gdb, contactSeed{id: ids[i]})
	}
	return ids
}

func createTask(t *testing.T, svc *Service, taskNo, targets, gray string) *model.MassTask {
	t.Helper()
	req := &CreateTaskRequest{TaskNo: taskNo, ContentType: "text", ContentJSON: []byte(`{"text":"hi"}`)}
	if targets != "" {
		req.TargetsSpec = []byte(targets)
	}
	if gray != "" {
		req.GrayStrategy = []byte(gray)
	}
	task, err := svc.CreateTask(context.Background(), req)
	require.NoError(t, err)
	return task
}

func taskStatus(t *testing.T, gdb *gorm.DB, id int64) model.MassTaskStatus {
	t.Helper()
	var task model.MassTask
	require.NoError(t, gdb.First(&task, id).Error)
	return task.Status
}

func snapshotsOf(t *testing.T, gdb *gorm.DB, id int64) []model.MassTargetSnapshot {
	t.Helper()
	var rows []model.MassTargetSnapshot
	require.NoError(t, gdb.Where("task_id = ?", id).Order("wave_no, batch_no, id").Find(&rows).Error)
	return rows
}

func setStatus(t *testing.T, gdb *gorm.DB, id int64, status model.MassTaskStatus) {
	t.Helper()
	require.NoError(t, gdb.Model(&model.MassTask{}).Where("id = ?", id).Update("status", status).Error)
}
