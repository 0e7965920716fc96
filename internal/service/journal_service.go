package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/gamification"
	"github.com/betterlyfe/internal/logger"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"
)

var (
	journalMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	journalSanitizer = bluemonday.UGCPolicy()
)

// JournalService 负责每日日记，每个账户每天最多一篇
type JournalService struct {
	db  *gorm.DB
	log *logger.Logger
	loc *time.Location
	now func() time.Time
}

// JournalFilter 描述日记列表的日期区间，零值表示不限
type JournalFilter struct {
	Start          time.Time
	End            time.Time
	IncludeDeleted bool
}

// JournalInput 定义创建/更新日记的字段，EntryDate 为空时取今天
type JournalInput struct {
	EntryDate  *time.Time
	Title      string
	Content    string
	MoodRating *int
	TagIDs     []uuid.UUID
}

// NewJournalService 构造 JournalService，loc 为空时使用本地时区
func NewJournalService(gdb *gorm.DB, log *logger.Logger, loc *time.Location) *JournalService {
	if loc == nil {
		loc = time.Local
	}
	return &JournalService{
		db:  gdb,
		log: logger.OrNop(log).With("service", "journal"),
		loc: loc,
		now: time.Now,
	}
}

// List 返回账户的日记，按日期倒序
func (s *JournalService) List(ctx context.Context, accountID uuid.UUID, filter JournalFilter) ([]db.JournalEntry, error) {
	query := view(s.db.WithContext(ctx), filter.IncludeDeleted).
		Preload("Tags").
		Where("account_id = ?", accountID)
	if !filter.Start.IsZero() {
		query = query.Where("entry_date >= ?", gamification.CalendarDate(filter.Start, nil))
	}
	if !filter.End.IsZero() {
		query = query.Where("entry_date <= ?", gamification.CalendarDate(filter.End, nil))
	}

	var entries []db.JournalEntry
	if err := query.Order("entry_date DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return entries, nil
}

// Get 根据 ID 获取日记
func (s *JournalService) Get(ctx context.Context, accountID, id uuid.UUID) (*db.JournalEntry, error) {
	var entry db.JournalEntry
	if err := s.db.WithContext(ctx).
		Preload("Tags").
		Scopes(ownedBy(accountID)).
		First(&entry, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrJournalNotFound, "get journal entry")
	}
	return &entry, nil
}

// Create 新建日记，同一天已有日记（包括墓碑）时返回 ErrJournalEntryExists
func (s *JournalService) Create(ctx context.Context, accountID uuid.UUID, input JournalInput) (*db.JournalEntry, error) {
	if err := validateJournalInput(input); err != nil {
		return nil, err
	}

	entry := db.JournalEntry{AccountID: accountID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := findTags(tx, input.TagIDs)
		if err != nil {
			return err
		}

		s.applyJournalInput(&entry, input)
		entry.Tags = tags
		if err := tx.Create(&entry).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrJournalEntryExists
			}
			return fmt.Errorf("create journal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Update 更新日记内容、日期与标签
func (s *JournalService) Update(ctx context.Context, accountID, id uuid.UUID, input JournalInput) (*db.JournalEntry, error) {
	if err := validateJournalInput(input); err != nil {
		return nil, err
	}

	var entry db.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(ownedBy(accountID)).First(&entry, "id = ?", id).Error; err != nil {
			return translateLookup(err, ErrJournalNotFound, "find journal entry")
		}
		tags, err := findTags(tx, input.TagIDs)
		if err != nil {
			return err
		}

		s.applyJournalInput(&entry, input)
		if err := tx.Model(&entry).
			Select("entry_date", "title", "content", "mood_rating").
			Updates(&entry).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrJournalEntryExists
			}
			return fmt.Errorf("update journal entry: %w", err)
		}
		if err := tx.Model(&entry).Association("Tags").Replace(tags); err != nil {
			return fmt.Errorf("replace journal tags: %w", err)
		}
		entry.Tags = tags
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete 软删除日记
func (s *JournalService) Delete(ctx context.Context, accountID, id uuid.UUID) (*db.JournalEntry, error) {
	return softDelete[db.JournalEntry](ctx, s.db, id, ownedBy(accountID), ErrJournalNotFound, s.now())
}

// Restore 恢复被软删除的日记
func (s *JournalService) Restore(ctx context.Context, accountID, id uuid.UUID) (*db.JournalEntry, error) {
	return restoreDeleted[db.JournalEntry](ctx, s.db, id, ownedBy(accountID), ErrJournalNotFound)
}

// RenderJournal 将 Markdown 正文转换为经过清洗的 HTML
func RenderJournal(content string) (string, error) {
	var buf bytes.Buffer
	if err := journalMarkdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return string(journalSanitizer.SanitizeBytes(buf.Bytes())), nil
}

func (s *JournalService) applyJournalInput(entry *db.JournalEntry, input JournalInput) {
	if input.EntryDate != nil {
		entry.EntryDate = gamification.CalendarDate(*input.EntryDate, s.loc)
	} else if entry.EntryDate.IsZero() {
		entry.EntryDate = gamification.CalendarDate(s.now(), s.loc)
	}
	entry.Title = strings.TrimSpace(input.Title)
	entry.Content = input.Content
	entry.MoodRating = input.MoodRating
}

func validateJournalInput(input JournalInput) error {
	if strings.TrimSpace(input.Content) == "" {
		return invalidArgument("journal content is required")
	}
	if !db.ValidMood(input.MoodRating) {
		return invalidArgument("mood rating must be between %d and %d", db.MoodMin, db.MoodMax)
	}
	return nil
}
