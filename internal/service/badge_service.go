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

// BadgeService 负责徽章目录与按经验门槛发放徽章
type BadgeService struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// BadgeInput 定义创建/更新徽章的字段
type BadgeInput struct {
	Name        string
	Description string
	Icon        string
	XPRequired  int
}

// NewBadgeService 构造 BadgeService
func NewBadgeService(gdb *gorm.DB, log *logger.Logger) *BadgeService {
	return &BadgeService{db: gdb, log: logger.OrNop(log).With("service", "badge"), now: time.Now}
}

// List 返回徽章目录，按门槛升序
func (s *BadgeService) List(ctx context.Context, includeDeleted bool) ([]db.Badge, error) {
	var badges []db.Badge
	if err := view(s.db.WithContext(ctx), includeDeleted).
		Order("xp_required ASC").
		Order("name ASC").
		Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// Get 根据 ID 获取徽章
func (s *BadgeService) Get(ctx context.Context, id uuid.UUID) (*db.Badge, error) {
	var badge db.Badge
	if err := s.db.WithContext(ctx).First(&badge, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrBadgeNotFound, "get badge")
	}
	return &badge, nil
}

// Create 新建徽章，名称唯一
func (s *BadgeService) Create(ctx context.Context, input BadgeInput) (*db.Badge, error) {
	input, err := normalizeBadgeInput(input)
	if err != nil {
		return nil, err
	}

	badge := db.Badge{
		Name:        input.Name,
		Description: input.Description,
		Icon:        input.Icon,
		XPRequired:  input.XPRequired,
	}
	if err := s.db.WithContext(ctx).Create(&badge).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrBadgeExists
		}
		return nil, fmt.Errorf("create badge: %w", err)
	}
	return &badge, nil
}

// Update 更新徽章，已发放的记录不受门槛变化影响
func (s *BadgeService) Update(ctx context.Context, id uuid.UUID, input BadgeInput) (*db.Badge, error) {
	input, err := normalizeBadgeInput(input)
	if err != nil {
		return nil, err
	}

	badge, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	badge.Name = input.Name
	badge.Description = input.Description
	badge.Icon = input.Icon
	badge.XPRequired = input.XPRequired

	if err := s.db.WithContext(ctx).Model(badge).
		Select("name", "description", "icon", "xp_required").
		Updates(badge).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrBadgeExists
		}
		return nil, fmt.Errorf("update badge: %w", err)
	}
	return badge, nil
}

// Delete 软删除徽章
func (s *BadgeService) Delete(ctx context.Context, id uuid.UUID) (*db.Badge, error) {
	return softDelete[db.Badge](ctx, s.db, id, unscoped, ErrBadgeNotFound, s.now())
}

// Restore 恢复被软删除的徽章
func (s *BadgeService) Restore(ctx context.Context, id uuid.UUID) (*db.Badge, error) {
	return restoreDeleted[db.Badge](ctx, s.db, id, unscoped, ErrBadgeNotFound)
}

// Eligible 返回账户经验已达门槛、且从未发放过的活动徽章。
// 已发放后被软删除的记录同样视为发放过，唯一约束覆盖全部记录。
func (s *BadgeService) Eligible(ctx context.Context, accountID uuid.UUID) ([]db.Badge, error) {
	var account db.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return nil, translateLookup(err, ErrAccountNotFound, "find account")
	}
	return eligibleBadges(s.db.WithContext(ctx), &account)
}

// Award 为账户发放指定徽章。经验不足返回 ErrInvalidArgument，重复发放返回 ErrBadgeAlreadyAwarded
func (s *BadgeService) Award(ctx context.Context, accountID, badgeID uuid.UUID) (*db.AwardedBadge, error) {
	var awarded *db.AwardedBadge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account db.Account
		if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
			return translateLookup(err, ErrAccountNotFound, "find account")
		}
		var badge db.Badge
		if err := tx.First(&badge, "id = ?", badgeID).Error; err != nil {
			return translateLookup(err, ErrBadgeNotFound, "find badge")
		}
		if !badge.EligibleFor(&account) {
			return invalidArgument("badge %q requires %d xp, account has %d", badge.Name, badge.XPRequired, account.XP)
		}

		var err error
		awarded, err = insertAward(tx, account.ID, badge)
		return err
	})
	if err != nil {
		return nil, err
	}

	badgesAwardedTotal.Inc()
	s.log.Info("badge awarded", "account_id", accountID, "badge", awarded.Badge.Name)
	return awarded, nil
}

// AwardEligible 一次性发放所有符合条件的徽章，返回本次新发放的记录
func (s *BadgeService) AwardEligible(ctx context.Context, accountID uuid.UUID) ([]db.AwardedBadge, error) {
	var granted []db.AwardedBadge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account db.Account
		if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
			return translateLookup(err, ErrAccountNotFound, "find account")
		}

		badges, err := eligibleBadges(tx, &account)
		if err != nil {
			return err
		}
		for _, badge := range badges {
			awarded, err := insertAward(tx, account.ID, badge)
			if err != nil {
				return err
			}
			granted = append(granted, *awarded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(granted) > 0 {
		badgesAwardedTotal.Add(float64(len(granted)))
		s.log.Info("badges awarded", "account_id", accountID, "count", len(granted))
	}
	return granted, nil
}

// Awarded 返回账户已获得的徽章，按发放时间升序
func (s *BadgeService) Awarded(ctx context.Context, accountID uuid.UUID, includeDeleted bool) ([]db.AwardedBadge, error) {
	var items []db.AwardedBadge
	if err := view(s.db.WithContext(ctx), includeDeleted).
		Preload("Badge", func(q *gorm.DB) *gorm.DB { return q.Unscoped() }).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list awarded badges: %w", err)
	}
	return items, nil
}

// Revoke 软删除一条发放记录
func (s *BadgeService) Revoke(ctx context.Context, accountID, id uuid.UUID) (*db.AwardedBadge, error) {
	return softDelete[db.AwardedBadge](ctx, s.db, id, ownedBy(accountID), ErrBadgeNotFound, s.now())
}

// Reinstate 恢复被软删除的发放记录
func (s *BadgeService) Reinstate(ctx context.Context, accountID, id uuid.UUID) (*db.AwardedBadge, error) {
	return restoreDeleted[db.AwardedBadge](ctx, s.db, id, ownedBy(accountID), ErrBadgeNotFound)
}

func eligibleBadges(q *gorm.DB, account *db.Account) ([]db.Badge, error) {
	awarded := q.Session(&gorm.Session{NewDB: true}).
		Unscoped().
		Model(&db.AwardedBadge{}).
		Select("badge_id").
		Where("account_id = ?", account.ID)

	var badges []db.Badge
	if err := q.Where("xp_required <= ?", account.XP).
		Where("id NOT IN (?)", awarded).
		Order("xp_required ASC").
		Order("name ASC").
		Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("list eligible badges: %w", err)
	}
	return badges, nil
}

// insertAward 依靠唯一索引拒绝重复发放
func insertAward(tx *gorm.DB, accountID uuid.UUID, badge db.Badge) (*db.AwardedBadge, error) {
	awarded := db.AwardedBadge{AccountID: accountID, BadgeID: badge.ID}
	if err := tx.Omit("Badge").Create(&awarded).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrBadgeAlreadyAwarded
		}
		return nil, fmt.Errorf("award badge: %w", err)
	}
	awarded.Badge = badge
	return &awarded, nil
}

func normalizeBadgeInput(input BadgeInput) (BadgeInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Icon = strings.TrimSpace(input.Icon)
	if input.Name == "" {
		return input, invalidArgument("badge name is required")
	}
	if input.XPRequired < 0 {
		return input, invalidArgument("xp required must be non-negative")
	}
	return input, nil
}
