package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRewardCostXP 为未指定价格时的奖励价格
const DefaultRewardCostXP = 100

// RewardService 负责奖励目录以及账户持有奖励的使用
type RewardService struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// RewardInput 定义创建/更新奖励的字段
type RewardInput struct {
	Name        string
	Description string
	CostXP      *int
	RewardType  string
}

// InventoryFilter 描述持有奖励列表的过滤条件
type InventoryFilter struct {
	Unused         bool
	IncludeDeleted bool
}

// NewRewardService 构造 RewardService
func NewRewardService(gdb *gorm.DB, log *logger.Logger) *RewardService {
	return &RewardService{db: gdb, log: logger.OrNop(log).With("service", "reward"), now: time.Now}
}

// List 返回奖励目录，按价格升序
func (s *RewardService) List(ctx context.Context, includeDeleted bool) ([]db.Reward, error) {
	var rewards []db.Reward
	if err := view(s.db.WithContext(ctx), includeDeleted).
		Order("cost_xp ASC").
		Order("name ASC").
		Find(&rewards).Error; err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

// Get 根据 ID 获取奖励
func (s *RewardService) Get(ctx context.Context, id uuid.UUID) (*db.Reward, error) {
	var reward db.Reward
	if err := s.db.WithContext(ctx).First(&reward, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrRewardNotFound, "get reward")
	}
	return &reward, nil
}

// Create 新建奖励，名称唯一
func (s *RewardService) Create(ctx context.Context, input RewardInput) (*db.Reward, error) {
	input, err := normalizeRewardInput(input)
	if err != nil {
		return nil, err
	}

	reward := db.Reward{
		Name:        input.Name,
		Description: input.Description,
		CostXP:      *input.CostXP,
		RewardType:  input.RewardType,
	}
	if err := s.db.WithContext(ctx).Create(&reward).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRewardExists
		}
		return nil, fmt.Errorf("create reward: %w", err)
	}
	return &reward, nil
}

// Update 更新奖励
func (s *RewardService) Update(ctx context.Context, id uuid.UUID, input RewardInput) (*db.Reward, error) {
	input, err := normalizeRewardInput(input)
	if err != nil {
		return nil, err
	}

	reward, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reward.Name = input.Name
	reward.Description = input.Description
	reward.CostXP = *input.CostXP
	reward.RewardType = input.RewardType

	if err := s.db.WithContext(ctx).Model(reward).
		Select("name", "description", "cost_xp", "reward_type").
		Updates(reward).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRewardExists
		}
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return reward, nil
}

// Delete 软删除奖励
func (s *RewardService) Delete(ctx context.Context, id uuid.UUID) (*db.Reward, error) {
	return softDelete[db.Reward](ctx, s.db, id, unscoped, ErrRewardNotFound, s.now())
}

// Restore 恢复被软删除的奖励
func (s *RewardService) Restore(ctx context.Context, id uuid.UUID) (*db.Reward, error) {
	return restoreDeleted[db.Reward](ctx, s.db, id, unscoped, ErrRewardNotFound)
}

// Acquire 为账户登记一件持有的奖励，不扣除经验
func (s *RewardService) Acquire(ctx context.Context, accountID, rewardID uuid.UUID) (*db.PurchasedReward, error) {
	var purchase db.PurchasedReward
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reward db.Reward
		if err := tx.First(&reward, "id = ?", rewardID).Error; err != nil {
			return translateLookup(err, ErrRewardNotFound, "find reward")
		}

		purchase = db.PurchasedReward{AccountID: accountID, RewardID: reward.ID}
		if err := tx.Omit("Reward").Create(&purchase).Error; err != nil {
			return fmt.Errorf("create purchased reward: %w", err)
		}
		purchase.Reward = reward
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reward acquired", "account_id", accountID, "reward_id", rewardID, "purchase_id", purchase.ID)
	return &purchase, nil
}

// Inventory 返回账户持有的奖励，目录中已删除的奖励仍随记录一起返回
func (s *RewardService) Inventory(ctx context.Context, accountID uuid.UUID, filter InventoryFilter) ([]db.PurchasedReward, error) {
	query := view(s.db.WithContext(ctx), filter.IncludeDeleted).
		Preload("Reward", func(q *gorm.DB) *gorm.DB { return q.Unscoped() }).
		Where("account_id = ?", accountID)
	if filter.Unused {
		query = query.Where("is_used = ?", false)
	}

	var items []db.PurchasedReward
	if err := query.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// GetPurchase 根据 ID 获取账户持有的奖励
func (s *RewardService) GetPurchase(ctx context.Context, accountID, id uuid.UUID) (*db.PurchasedReward, error) {
	var purchase db.PurchasedReward
	if err := s.db.WithContext(ctx).
		Preload("Reward", func(q *gorm.DB) *gorm.DB { return q.Unscoped() }).
		Scopes(ownedBy(accountID)).
		First(&purchase, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrPurchaseNotFound, "get purchased reward")
	}
	return &purchase, nil
}

// Use 将持有的奖励标记为已使用，已使用时原样返回，changed 为 false
func (s *RewardService) Use(ctx context.Context, accountID, id uuid.UUID) (*db.PurchasedReward, bool, error) {
	purchase, err := s.GetPurchase(ctx, accountID, id)
	if err != nil {
		return nil, false, err
	}
	if !purchase.Use() {
		return purchase, false, nil
	}

	result := s.db.WithContext(ctx).Model(&db.PurchasedReward{}).
		Where("id = ? AND is_used = ?", purchase.ID, false).
		Update("is_used", true)
	if result.Error != nil {
		return nil, false, fmt.Errorf("use reward: %w", result.Error)
	}
	changed := result.RowsAffected > 0
	if changed {
		completionsTotal.WithLabelValues(kindReward).Inc()
		s.log.Info("reward used", "account_id", accountID, "purchase_id", purchase.ID)
	}
	return purchase, changed, nil
}

// DeletePurchase 软删除持有记录
func (s *RewardService) DeletePurchase(ctx context.Context, accountID, id uuid.UUID) (*db.PurchasedReward, error) {
	return softDelete[db.PurchasedReward](ctx, s.db, id, ownedBy(accountID), ErrPurchaseNotFound, s.now())
}

// RestorePurchase 恢复被软删除的持有记录
func (s *RewardService) RestorePurchase(ctx context.Context, accountID, id uuid.UUID) (*db.PurchasedReward, error) {
	return restoreDeleted[db.PurchasedReward](ctx, s.db, id, ownedBy(accountID), ErrPurchaseNotFound)
}

func normalizeRewardInput(input RewardInput) (RewardInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.RewardType = strings.TrimSpace(strings.ToLower(input.RewardType))
	if input.RewardType == "" {
		input.RewardType = db.RewardTypeItem
	}
	if input.CostXP == nil {
		cost := DefaultRewardCostXP
		input.CostXP = &cost
	}

	if input.Name == "" {
		return input, invalidArgument("reward name is required")
	}
	if *input.CostXP < 0 {
		return input, invalidArgument("reward cost must be non-negative")
	}
	if !db.ValidRewardType(input.RewardType) {
		return input, invalidArgument("unsupported reward type %q", input.RewardType)
	}
	return input, nil
}
