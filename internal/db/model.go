package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model 是所有实体共享的基础字段：UUID 主键、时间戳与软删除墓碑。
// IsDeleted 为 true 当且仅当 DeletedAt 有值；DeletedAt 复用 gorm 的软删除作用域，
// 默认查询只返回活动记录，Unscoped 查询返回包含墓碑在内的全部记录。
type Model struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	IsDeleted bool           `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// BeforeCreate 在插入前分配 UUID，已有 ID 时保持不变
func (m *Model) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Base 暴露嵌入的基础字段，供通用的软删除逻辑使用
func (m *Model) Base() *Model {
	return m
}

// MarkDeleted 写入墓碑标记。
func (m *Model) MarkDeleted(now time.Time) {
	m.IsDeleted = true
	m.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
}

// MarkRestored 清除墓碑标记。
func (m *Model) MarkRestored() {
	m.IsDeleted = false
	m.DeletedAt = gorm.DeletedAt{}
}

// TombstoneColumns 返回与当前墓碑状态对应的列更新。
func (m *Model) TombstoneColumns() map[string]any {
	if !m.IsDeleted {
		return map[string]any{"is_deleted": false, "deleted_at": nil}
	}
	return map[string]any{"is_deleted": true, "deleted_at": m.DeletedAt.Time}
}

// DeletedAtPtr 便于序列化：活动记录返回 nil
func (m *Model) DeletedAtPtr() *time.Time {
	if !m.DeletedAt.Valid {
		return nil
	}
	t := m.DeletedAt.Time
	return &t
}
