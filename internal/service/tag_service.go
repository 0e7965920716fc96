package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var tagColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// TagService wraps tag related operations.
type TagService struct {
	db  *gorm.DB
	now func() time.Time
}

// TagInput 定义创建/更新标签的字段，Color 为空时使用默认色
type TagInput struct {
	Name  string
	Color string
}

// NewTagService creates a TagService instance.
func NewTagService(gdb *gorm.DB) *TagService {
	return &TagService{db: gdb, now: time.Now}
}

// List returns tags ordered by name.
func (s *TagService) List(ctx context.Context, includeDeleted bool) ([]db.Tag, error) {
	var tags []db.Tag
	if err := view(s.db.WithContext(ctx), includeDeleted).
		Order("name asc").
		Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Get returns an active tag by id.
func (s *TagService) Get(ctx context.Context, id uuid.UUID) (*db.Tag, error) {
	var tag db.Tag
	if err := s.db.WithContext(ctx).First(&tag, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrTagNotFound, "get tag")
	}
	return &tag, nil
}

// Create inserts a new tag with unique name.
func (s *TagService) Create(ctx context.Context, input TagInput) (*db.Tag, error) {
	input, err := normalizeTagInput(input)
	if err != nil {
		return nil, err
	}

	tag := db.Tag{Name: input.Name, Color: input.Color}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTagExists
		}
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return &tag, nil
}

// Update changes the tag name and color while keeping uniqueness.
func (s *TagService) Update(ctx context.Context, id uuid.UUID, input TagInput) (*db.Tag, error) {
	input, err := normalizeTagInput(input)
	if err != nil {
		return nil, err
	}

	tag, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tag.Name = input.Name
	tag.Color = input.Color
	if err := s.db.WithContext(ctx).Model(tag).Select("name", "color").Updates(tag).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTagExists
		}
		return nil, fmt.Errorf("update tag: %w", err)
	}
	return tag, nil
}

// Delete 软删除标签，已有的关联保留，活动视图中不再展示
func (s *TagService) Delete(ctx context.Context, id uuid.UUID) (*db.Tag, error) {
	return softDelete[db.Tag](ctx, s.db, id, unscoped, ErrTagNotFound, s.now())
}

// Restore 恢复被软删除的标签
func (s *TagService) Restore(ctx context.Context, id uuid.UUID) (*db.Tag, error) {
	return restoreDeleted[db.Tag](ctx, s.db, id, unscoped, ErrTagNotFound)
}

func normalizeTagInput(input TagInput) (TagInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Color = strings.TrimSpace(input.Color)
	if input.Name == "" {
		return input, invalidArgument("tag name is required")
	}
	if len([]rune(input.Name)) > 50 {
		return input, invalidArgument("tag name must be at most 50 characters")
	}
	if input.Color == "" {
		input.Color = db.DefaultTagColor
	}
	if !tagColorPattern.MatchString(input.Color) {
		return input, invalidArgument("tag color must look like #RRGGBB")
	}
	return input, nil
}
