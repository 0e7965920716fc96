package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// 错误分类：调用方通过 errors.Is 判断类别并映射到边界协议（例如 HTTP 404/400/409）
var (
	// ErrNotFound 表示引用的记录不存在或已被软删除
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument 表示输入不合法，例如负经验、越界的心情评分、错误的日期
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConstraintViolation 表示写入违反唯一约束
	ErrConstraintViolation = errors.New("constraint violation")
)

var (
	ErrAccountNotFound    = fmt.Errorf("account %w", ErrNotFound)
	ErrGoalNotFound       = fmt.Errorf("goal %w", ErrNotFound)
	ErrTaskNotFound       = fmt.Errorf("task %w", ErrNotFound)
	ErrHabitNotFound      = fmt.Errorf("habit %w", ErrNotFound)
	ErrHabitEntryNotFound = fmt.Errorf("habit entry %w", ErrNotFound)
	ErrJournalNotFound    = fmt.Errorf("journal entry %w", ErrNotFound)
	ErrTagNotFound        = fmt.Errorf("tag %w", ErrNotFound)
	ErrRewardNotFound     = fmt.Errorf("reward %w", ErrNotFound)
	ErrPurchaseNotFound   = fmt.Errorf("purchased reward %w", ErrNotFound)
	ErrBadgeNotFound      = fmt.Errorf("badge %w", ErrNotFound)
	ErrProfileNotFound    = fmt.Errorf("profile %w", ErrNotFound)
	ErrInvalidCredential  = errors.New("invalid username or password")
)

var (
	ErrUsernameTaken       = fmt.Errorf("%w: username already exists", ErrConstraintViolation)
	ErrTagExists           = fmt.Errorf("%w: tag already exists", ErrConstraintViolation)
	ErrRewardExists        = fmt.Errorf("%w: reward already exists", ErrConstraintViolation)
	ErrBadgeExists         = fmt.Errorf("%w: badge already exists", ErrConstraintViolation)
	ErrBadgeAlreadyAwarded = fmt.Errorf("%w: badge already awarded", ErrConstraintViolation)
	ErrJournalEntryExists  = fmt.Errorf("%w: journal entry already exists for this date", ErrConstraintViolation)
)

// invalidArgument 构造带说明的 ErrInvalidArgument
func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// isUniqueViolation 判断错误是否来自唯一约束冲突
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// translateLookup 将 gorm.ErrRecordNotFound 转换为对应实体的 NotFound 错误
func translateLookup(err error, notFound error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return fmt.Errorf("%s: %w", action, err)
}
