package service

import (
	"context"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// tombstoned 由嵌入了 db.Model 的实体指针实现
type tombstoned[T any] interface {
	*T
	Base() *db.Model
}

// scopeFunc 用于限定记录的可见范围，例如仅当前账户
type scopeFunc = func(*gorm.DB) *gorm.DB

func ownedBy(accountID uuid.UUID) scopeFunc {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("account_id = ?", accountID)
	}
}

func unscoped(q *gorm.DB) *gorm.DB {
	return q
}

// view 返回活动视图或包含墓碑在内的全部视图，两者读取同一张表
func view(q *gorm.DB, includeDeleted bool) *gorm.DB {
	if includeDeleted {
		return q.Unscoped()
	}
	return q
}

// softDelete 为活动记录写入墓碑，记录仍保留在表中
func softDelete[T any, P tombstoned[T]](ctx context.Context, gdb *gorm.DB, id uuid.UUID, scope scopeFunc, notFound error, now time.Time) (P, error) {
	var record T
	ptr := P(&record)

	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(scope).First(ptr, "id = ?", id).Error; err != nil {
			return translateLookup(err, notFound, "find record")
		}
		ptr.Base().MarkDeleted(now)
		return tx.Unscoped().Model(ptr).Updates(ptr.Base().TombstoneColumns()).Error
	})
	if err != nil {
		return nil, err
	}
	return ptr, nil
}

// restoreDeleted 清除墓碑；记录本就处于活动状态时原样返回
func restoreDeleted[T any, P tombstoned[T]](ctx context.Context, gdb *gorm.DB, id uuid.UUID, scope scopeFunc, notFound error) (P, error) {
	var record T
	ptr := P(&record)

	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Scopes(scope).First(ptr, "id = ?", id).Error; err != nil {
			return translateLookup(err, notFound, "find record")
		}
		if !ptr.Base().IsDeleted {
			return nil
		}
		ptr.Base().MarkRestored()
		return tx.Unscoped().Model(ptr).Updates(ptr.Base().TombstoneColumns()).Error
	})
	if err != nil {
		return nil, err
	}
	return ptr, nil
}
