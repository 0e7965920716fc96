package db

// DefaultTagColor 为未指定颜色时的标签色
const DefaultTagColor = "#3b82f6"

// Tag 定义了标签模型，可用于任务与日记
// Name 的唯一约束覆盖包括墓碑在内的全部记录
type Tag struct {
	Model
	Name  string `gorm:"size:50;uniqueIndex;not null"`
	Color string `gorm:"size:20;not null;default:'#3b82f6'"`
}
