package model

// MobileUpload 手机号清单上传批次
type MobileUpload struct {
	BaseModel
	UploadToken    string `gorm:"type:varchar(64);not null;uniqueIndex" json:"upload_token"`
	Name           string `gorm:"type:varchar(128)" json:"name"`
	Total          int    `gorm:"not null;default:0" json:"total"`
	UniqueCount    int    `gorm:"not null;default:0" json:"unique"`
	Valid          int    `gorm:"not null;default:0" json:"valid"`
	Invalid        int    `gorm:"not null;default:0" json:"invalid"`
	DuplicateCount int    `gorm:"not null;default:0" json:"duplicate_count"`
}

// TableName 指定表名
func (MobileUpload) TableName() string {
	return "mobile_upload"
}

// MobileUploadItem 上传批次中的标准化手机号
type MobileUploadItem struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UploadID  int64  `gorm:"not null;index:idx_upload_mobile,priority:1" json:"upload_id"`
	MobileStd string `gorm:"type:varchar(16);not null;index:idx_upload_mobile,priority:2" json:"mobile_std"`
}

// TableName 指定表名
func (MobileUploadItem) TableName() string {
	return "mobile_upload_item"
}
