package db

import "github.com/google/uuid"

// 奖励类型
const (
	RewardTypeItem      = "item"
	RewardTypePrivilege = "privilege"
	RewardTypeCosmetic  = "cosmetic"
)

// Reward 定义了奖励商店中的可兑换项
type Reward struct {
	Model
	Name        string `gorm:"size:255;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	CostXP      int    `gorm:"not null;default:100"`
	RewardType  string `gorm:"size:20;not null;default:item"`
}

// ValidRewardType 判断奖励类型是否合法
func ValidRewardType(rewardType string) bool {
	switch rewardType {
	case RewardTypeItem, RewardTypePrivilege, RewardTypeCosmetic:
		return true
	}
	return false
}

// PurchasedReward 记录账户持有的奖励，IsUsed 只能由 false 变为 true
type PurchasedReward struct {
	Model
	AccountID uuid.UUID `gorm:"type:uuid;index;not null"`
	RewardID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Reward    Reward    `gorm:"constraint:OnDelete:CASCADE"`
	IsUsed    bool      `gorm:"not null;default:false"`
}

// Use 标记为已使用；已使用时返回 false
func (p *PurchasedReward) Use() bool {
	if p.IsUsed {
		return false
	}
	p.IsUsed = true
	return true
}
