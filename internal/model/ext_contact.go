package model

import "time"

// The tables below are written by the contact sync jobs; the campaign planner only reads them.

// ExtContact 外部联系人（每个 跟进人 一行）
type ExtContact struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ExternalUserID string    `gorm:"column:external_userid;type:varchar(64);not null;index" json:"external_userid"`
	Name           string    `gorm:"type:varchar(128)" json:"name"`
	CorpName       string    `gorm:"type:varchar(128)" json:"corp_name"`
	UnionID        *string   `gorm:"column:unionid;type:varchar(64);index" json:"unionid"`
	FollowUserID   string    `gorm:"column:follow_userid;type:varchar(64);index" json:"follow_userid"`
	StoreID        string    `gorm:"type:varchar(64);index" json:"store_id"`
	BrandID        string    `gorm:"type:varchar(64);index" json:"brand_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ExtContact) TableName() string {
	return "ext_contact"
}

// ExtContactTag 外部联系人标签关联
type ExtContactTag struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ExternalUserID string `gorm:"column:external_userid;type:varchar(64);not null;index:idx_ext_tag,priority:2" json:"external_userid"`
	TagID          string `gorm:"type:varchar(64);not null;index:idx_ext_tag,priority:1" json:"tag_id"`
}

// TableName 指定表名
func (ExtContactTag) TableName() string {
	return "ext_contact_tag"
}

// ThirdPartyUserImport 第三方会员导入（手机号 -> unionid）
type ThirdPartyUserImport struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserName string `gorm:"type:varchar(32);not null;index" json:"user_name"`
	UnionID  string `gorm:"column:union_id;type:varchar(64);index" json:"union_id"`
}

// TableName 指定表名
func (ThirdPartyUserImport) TableName() string {
	return "third_party_user_import"
}
