package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/gamification"
	"github.com/betterlyfe/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GoalService 负责目标的增删改查、进度与完成奖励
type GoalService struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// GoalFilter 描述目标列表的过滤条件
type GoalFilter struct {
	Status         string
	IncludeDeleted bool
}

// GoalInput 定义创建/更新目标时可配置字段
// CompletionXPReward 为 nil 时使用默认奖励
type GoalInput struct {
	Name               string
	Description        string
	Status             string
	TargetValue        *decimal.Decimal
	TargetDate         *time.Time
	CompletionXPReward *int
}

// NewGoalService 构造 GoalService
func NewGoalService(gdb *gorm.DB, log *logger.Logger) *GoalService {
	return &GoalService{db: gdb, log: logger.OrNop(log).With("service", "goal"), now: time.Now}
}

// List 返回账户的目标，按目标日期升序，未设置日期的排在最后
func (s *GoalService) List(ctx context.Context, accountID uuid.UUID, filter GoalFilter) ([]db.Goal, error) {
	query := view(s.db.WithContext(ctx), filter.IncludeDeleted).Where("account_id = ?", accountID)
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var goals []db.Goal
	if err := query.
		Order("CASE WHEN target_date IS NULL THEN 1 ELSE 0 END").
		Order("target_date ASC").
		Order("created_at ASC").
		Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// Get 根据 ID 获取账户的活动目标
func (s *GoalService) Get(ctx context.Context, accountID, id uuid.UUID) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.WithContext(ctx).Scopes(ownedBy(accountID)).First(&goal, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrGoalNotFound, "get goal")
	}
	return &goal, nil
}

// Create 新建目标
func (s *GoalService) Create(ctx context.Context, accountID uuid.UUID, input GoalInput) (*db.Goal, error) {
	if err := validateGoalInput(input); err != nil {
		return nil, err
	}

	goal := db.Goal{AccountID: accountID, CompletionXPReward: gamification.DefaultGoalCompletionXP}
	applyGoalInput(&goal, input)

	if err := s.db.WithContext(ctx).Create(&goal).Error; err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return &goal, nil
}

// Update 更新目标属性。状态改为 completed 不会发放奖励，奖励只经由 MarkCompleted
func (s *GoalService) Update(ctx context.Context, accountID, id uuid.UUID, input GoalInput) (*db.Goal, error) {
	if err := validateGoalInput(input); err != nil {
		return nil, err
	}

	goal, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	applyGoalInput(goal, input)

	if err := s.db.WithContext(ctx).Save(goal).Error; err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	return goal, nil
}

// UpdateProgress 设置目标的当前进度值，保留两位小数
func (s *GoalService) UpdateProgress(ctx context.Context, accountID, id uuid.UUID, current decimal.Decimal) (*db.Goal, error) {
	if current.IsNegative() {
		return nil, invalidArgument("current value must be non-negative")
	}

	goal, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	goal.CurrentValue = current.Round(2)
	if err := s.db.WithContext(ctx).Model(goal).Update("current_value", goal.CurrentValue).Error; err != nil {
		return nil, fmt.Errorf("update goal progress: %w", err)
	}
	return goal, nil
}

// MarkCompleted 将目标置为完成并一次性发放 CompletionXPReward。
// 已完成的目标原样返回，award 为 nil。
func (s *GoalService) MarkCompleted(ctx context.Context, accountID, id uuid.UUID) (*db.Goal, *XPAward, error) {
	var (
		goal  db.Goal
		award *XPAward
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(ownedBy(accountID)).
			First(&goal, "id = ?", id).Error; err != nil {
			return translateLookup(err, ErrGoalNotFound, "find goal")
		}
		if !goal.MarkCompleted() {
			return nil
		}

		result := tx.Model(&db.Goal{}).
			Where("id = ? AND status <> ?", goal.ID, db.GoalStatusCompleted).
			Update("status", db.GoalStatusCompleted)
		if result.Error != nil {
			return fmt.Errorf("complete goal: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}

		var err error
		award, err = awardXP(ctx, tx, s.log, goal.AccountID, goal.CompletionXPReward, SourceGoal)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if award != nil {
		completionsTotal.WithLabelValues(SourceGoal).Inc()
		s.log.Info("goal completed", "goal_id", goal.ID, "account_id", goal.AccountID, "xp", award.Amount)
	}
	return &goal, award, nil
}

// Delete 软删除目标
func (s *GoalService) Delete(ctx context.Context, accountID, id uuid.UUID) (*db.Goal, error) {
	return softDelete[db.Goal](ctx, s.db, id, ownedBy(accountID), ErrGoalNotFound, s.now())
}

// Restore 恢复被软删除的目标
func (s *GoalService) Restore(ctx context.Context, accountID, id uuid.UUID) (*db.Goal, error) {
	return restoreDeleted[db.Goal](ctx, s.db, id, ownedBy(accountID), ErrGoalNotFound)
}

func validateGoalInput(input GoalInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return invalidArgument("goal name is required")
	}
	if input.Status != "" && !db.ValidGoalStatus(input.Status) {
		return invalidArgument("unsupported goal status %q", input.Status)
	}
	if input.TargetValue != nil && input.TargetValue.IsNegative() {
		return invalidArgument("target value must be non-negative")
	}
	if input.CompletionXPReward != nil && *input.CompletionXPReward < 0 {
		return invalidArgument("completion xp reward must be non-negative")
	}
	return nil
}

func applyGoalInput(goal *db.Goal, input GoalInput) {
	goal.Name = strings.TrimSpace(input.Name)
	goal.Description = strings.TrimSpace(input.Description)
	if input.Status != "" {
		goal.Status = input.Status
	} else if goal.Status == "" {
		goal.Status = db.GoalStatusActive
	}
	if input.TargetValue != nil {
		goal.TargetValue = decimal.NewNullDecimal(input.TargetValue.Round(2))
	} else {
		goal.TargetValue = decimal.NullDecimal{}
	}
	goal.TargetDate = input.TargetDate
	if input.CompletionXPReward != nil {
		goal.CompletionXPReward = *input.CompletionXPReward
	}
}
