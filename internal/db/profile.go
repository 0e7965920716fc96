package db

import "github.com/google/uuid"

// MaxBiographyRunes 为个人简介的最大字数
const MaxBiographyRunes = 200

// Profile 保存账户的个人资料，每个账户至多一条
type Profile struct {
	Model
	AccountID  uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Biography  string    `gorm:"size:200"`
	PictureURL string    `gorm:"size:255"`
}
