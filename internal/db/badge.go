package db

import (
	"github.com/betterlyfe/internal/gamification"
	"github.com/google/uuid"
)

// Badge 定义了可解锁的成就，XPRequired 为解锁所需的最低累计经验
type Badge struct {
	Model
	Name        string `gorm:"size:100;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	Icon        string `gorm:"size:255"`
	XPRequired  int    `gorm:"not null;default:0"`
}

// EligibleFor 判断账户经验是否达到门槛
func (b *Badge) EligibleFor(account *Account) bool {
	return gamification.BadgeEligible(account.XP, b.XPRequired)
}

// AwardedBadge 记录账户获得的徽章，Account + Badge 唯一
type AwardedBadge struct {
	Model
	AccountID uuid.UUID `gorm:"type:uuid;not null;index:idx_awarded_badge_unique,unique"`
	BadgeID   uuid.UUID `gorm:"type:uuid;not null;index:idx_awarded_badge_unique,unique"`
	Badge     Badge     `gorm:"constraint:OnDelete:CASCADE"`
}
