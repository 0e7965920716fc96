package db

import (
	"time"

	"github.com/google/uuid"
)

// 心情评分范围
const (
	MoodMin = 1
	MoodMax = 5
)

// JournalEntry 定义了每日日记，每个账户每天最多一篇
type JournalEntry struct {
	Model
	AccountID  uuid.UUID `gorm:"type:uuid;not null;index:idx_journal_account_date,unique"`
	EntryDate  time.Time `gorm:"not null;index;index:idx_journal_account_date,unique"`
	Title      string    `gorm:"size:255"`
	Content    string    `gorm:"type:text;not null"`
	MoodRating *int
	Tags       []Tag `gorm:"many2many:journal_entry_tags;"`
}

// ValidMood 判断心情评分是否在 [1,5] 范围内，nil 表示未填写
func ValidMood(mood *int) bool {
	return mood == nil || (*mood >= MoodMin && *mood <= MoodMax)
}
