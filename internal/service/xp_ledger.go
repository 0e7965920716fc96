package service

import (
	"context"
	"fmt"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/gamification"
	"github.com/betterlyfe/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// XPAward 描述一次经验发放的结果
type XPAward struct {
	AccountID uuid.UUID
	Amount    int
	Source    string
	XP        int
	Level     int
	LevelsUp  int
	PrevLevel int
}

// LeveledUp 表示本次发放是否触发升级
func (a *XPAward) LeveledUp() bool {
	return a != nil && a.LevelsUp > 0
}

// awardXP 在 tx 内为账户累加经验并重算等级，必须在事务中调用。
// xp 使用原子自增写入，随后锁定该行读取最新值、逐级推导等级，
// 并发发放不会丢失增量，等级只会上升。
func awardXP(ctx context.Context, tx *gorm.DB, log *logger.Logger, accountID uuid.UUID, amount int, source string) (*XPAward, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, gamification.ErrNegativeXP)
	}

	result := tx.WithContext(ctx).
		Model(&db.Account{}).
		Where("id = ?", accountID).
		Update("xp", gorm.Expr("xp + ?", amount))
	if result.Error != nil {
		return nil, fmt.Errorf("increment xp: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}

	var account db.Account
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "id = ?", accountID).Error; err != nil {
		return nil, translateLookup(err, ErrAccountNotFound, "reload account")
	}

	prevLevel := account.Level
	levelsUp := account.SyncLevel()
	level := account.Level
	if level != prevLevel {
		if err := tx.WithContext(ctx).
			Model(&db.Account{}).
			Where("id = ? AND level < ?", accountID, level).
			Update("level", level).Error; err != nil {
			return nil, fmt.Errorf("update level: %w", err)
		}
	}

	award := &XPAward{
		AccountID: accountID,
		Amount:    amount,
		Source:    source,
		XP:        account.XP,
		Level:     level,
		PrevLevel: prevLevel,
		LevelsUp:  levelsUp,
	}

	xpAwardedTotal.WithLabelValues(source).Add(float64(amount))
	if award.LevelsUp > 0 {
		levelUpsTotal.Add(float64(award.LevelsUp))
		log.Info("level up", "account_id", accountID, "from", prevLevel, "to", level, "xp", account.XP)
	}
	log.Debug("xp awarded", "account_id", accountID, "amount", amount, "source", source, "xp", account.XP)

	return award, nil
}
