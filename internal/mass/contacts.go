package mass

import (
	"context"
	"errors"
	"fmt"

	"wecom_ops/internal/model"

	"gorm.io/gorm"
)

// ContactStore is the gorm backed ContactSource over the WeCom contact mirror
type ContactStore struct {
	db *gorm.DB
}

// NewContactStore creates a contact store; pass a transaction handle to read inside it
func NewContactStore(db *gorm.DB) *ContactStore {
	return &ContactStore{db: db}
}

func (s *ContactStore) pluck(q *gorm.DB, column string, limit int) ([]string, error) {
	q = q.Distinct(column).Order(column + " ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []string
	if err := q.Pluck(column, &ids).Error; err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	return ids, nil
}

// AllRecipients 所有外部联系人
func (s *ContactStore) AllRecipients(ctx context.Context, limit int) ([]string, error) {
	q := s.db.WithContext(ctx).Table("ext_contact AS e").
		Where("e.external_userid <> ''")
	return s.pluck(q, "e.external_userid", limit)
}

// RecipientsByTags 命中任一标签的联系人
func (s *ContactStore) RecipientsByTags(ctx context.Context, tagIDs []string, limit int) ([]string, error) {
	q := s.db.WithContext(ctx).Table("ext_contact_tag AS t").
		Where("t.tag_id IN ?", tagIDs).
		Where("t.external_userid <> ''")
	return s.pluck(q, "t.external_userid", limit)
}

// RecipientsByFilter applies every non-empty predicate of f
func (s *ContactStore) RecipientsByFilter(ctx context.Context, f Filters, limit int) ([]string, error) {
	q := s.db.WithContext(ctx).Table("ext_contact AS e").
		Where("e.external_userid <> ''")

	if f.Q != "" {
		like := "%" + f.Q + "%"
		q = q.Where("(e.name LIKE ? OR e.corp_name LIKE ?)", like, like)
	}
	if len(f.OwnerUserIDs) > 0 {
		q = q.Where("e.follow_userid IN ?", []string(f.OwnerUserIDs))
	}
	if len(f.StoreIDs) > 0 {
		q = q.Where("e.store_id IN ?", []string(f.StoreIDs))
	}
	if len(f.BrandIDs) > 0 {
		q = q.Where("e.brand_id IN ?", []string(f.BrandIDs))
	}
	if len(f.TagIDs) > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM ext_contact_tag t WHERE t.external_userid = e.external_userid AND t.tag_id IN ?)", []string(f.TagIDs))
	}
	if f.HasUnionID != nil {
		if *f.HasUnionID {
			q = q.Where("e.unionid IS NOT NULL AND e.unionid <> ''")
		} else {
			q = q.Where("(e.unionid IS NULL OR e.unionid = '')")
		}
	}
	return s.pluck(q, "e.external_userid", limit)
}

// RecipientsByUpload maps uploaded mobiles to contacts through the third-party import unionids
func (s *ContactStore) RecipientsByUpload(ctx context.Context, uploadID int64, limit int) ([]string, error) {
	q := s.db.WithContext(ctx).Table("mobile_upload_item AS i").
		Joins("JOIN third_party_user_import AS tp ON tp.user_name = i.mobile_std").
		Joins("JOIN ext_contact AS e ON e.unionid = tp.union_id").
		Where("i.upload_id = ?", uploadID).
		Where("tp.union_id <> ''").
		Where("e.external_userid <> ''")
	return s.pluck(q, "e.external_userid", limit)
}

// UploadIDByToken resolves an upload token to its id
func (s *ContactStore) UploadIDByToken(ctx context.Context, token string) (int64, error) {
	var upload model.MobileUpload
	err := s.db.WithContext(ctx).Select("id").Where("upload_token = ?", token).First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, NotFoundError("upload not found: %s", token)
	}
	if err != nil {
		return 0, fmt.Errorf("query upload: %w", err)
	}
	return upload.ID, nil
}

// CountUploadRecipients counts contacts reachable from an upload
func (s *ContactStore) CountUploadRecipients(ctx context.Context, uploadID int64) (int, error) {
	ids, err := s.RecipientsByUpload(ctx, uploadID, 0)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
