package mass

import (
	"context"
	"fmt"
	"strings"

	"wecom_ops/internal/mobile"
	"wecom_ops/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UploadRequest 手机号清单，数组与文本两种形式可同时提供
type UploadRequest struct {
	Name    string   `json:"name"`
	Mobiles []string `json:"mobiles"`
	Text    string   `json:"text"`
}

// UploadResult 上传结果
type UploadResult struct {
	UploadID    int64  `json:"upload_id"`
	UploadToken string `json:"upload_token"`
	mobile.Summary
	// Reachable is the number of contacts the list maps to
	Reachable int `json:"reachable"`
}

// CreateUpload cleans a mobile list and stores it for UPLOAD and MIXED targeting
func (s *Service) CreateUpload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	raw := make([]string, 0, len(req.Mobiles))
	raw = append(raw, req.Mobiles...)
	raw = append(raw, mobile.SplitText(req.Text)...)
	if len(raw) == 0 {
		return nil, ValidationError("mobiles required")
	}

	sum := mobile.Clean(raw)
	if len(sum.Mobiles) == 0 {
		return nil, ValidationError("no valid mobiles")
	}

	upload := &model.MobileUpload{
		UploadToken:    uuid.NewString(),
		Name:           strings.TrimSpace(req.Name),
		Total:          sum.Total,
		UniqueCount:    sum.Unique,
		Valid:          sum.Valid,
		Invalid:        sum.Invalid,
		DuplicateCount: sum.DuplicateCount,
	}

	var reachable int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(upload).Error; err != nil {
			return fmt.Errorf("create upload: %w", err)
		}
		items := make([]model.MobileUploadItem, len(sum.Mobiles))
		for i, m := range sum.Mobiles {
			items[i] = model.MobileUploadItem{UploadID: upload.ID, MobileStd: m}
		}
		if err := tx.CreateInBatches(items, s.opts.InsertChunkSize).Error; err != nil {
			return fmt.Errorf("create upload items: %w", err)
		}
		n, err := NewContactStore(tx).CountUploadRecipients(ctx, upload.ID)
		if err != nil {
			return err
		}
		reachable = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"upload_id": upload.ID,
		"valid":     sum.Valid,
		"reachable": reachable,
	}).Info("Mobile list uploaded")

	return &UploadResult{
		UploadID:    upload.ID,
		UploadToken: upload.UploadToken,
		Summary:     sum,
		Reachable:   reachable,
	}, nil
}
