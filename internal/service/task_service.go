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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskService 负责任务的增删改查与完成奖励
type TaskService struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// TaskFilter 描述任务列表的过滤条件
type TaskFilter struct {
	Status         string
	GoalID         *uuid.UUID
	IncludeDeleted bool
}

// TaskInput 定义创建/更新任务时可配置字段
type TaskInput struct {
	Title       string
	Description string
	Status      string
	DueDate     *time.Time
	GoalID      *uuid.UUID
	TagIDs      []uuid.UUID
}

// NewTaskService 构造 TaskService
func NewTaskService(gdb *gorm.DB, log *logger.Logger) *TaskService {
	return &TaskService{db: gdb, log: logger.OrNop(log).With("service", "task"), now: time.Now}
}

// List 返回账户的任务，按截止日期升序
func (s *TaskService) List(ctx context.Context, accountID uuid.UUID, filter TaskFilter) ([]db.Task, error) {
	query := view(s.db.WithContext(ctx), filter.IncludeDeleted).
		Preload("Tags").
		Where("account_id = ?", accountID)
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.GoalID != nil {
		query = query.Where("goal_id = ?", *filter.GoalID)
	}

	var tasks []db.Task
	if err := query.
		Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END").
		Order("due_date ASC").
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Get 根据 ID 获取账户的活动任务
func (s *TaskService) Get(ctx context.Context, accountID, id uuid.UUID) (*db.Task, error) {
	var task db.Task
	if err := s.db.WithContext(ctx).
		Preload("Tags").
		Scopes(ownedBy(accountID)).
		First(&task, "id = ?", id).Error; err != nil {
		return nil, translateLookup(err, ErrTaskNotFound, "get task")
	}
	return &task, nil
}

// Create 新建任务，关联的目标必须属于同一账户
func (s *TaskService) Create(ctx context.Context, accountID uuid.UUID, input TaskInput) (*db.Task, error) {
	if err := validateTaskInput(input); err != nil {
		return nil, err
	}

	task := db.Task{AccountID: accountID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureGoalOwned(tx, accountID, input.GoalID); err != nil {
			return err
		}
		tags, err := findTags(tx, input.TagIDs)
		if err != nil {
			return err
		}

		applyTaskInput(&task, input)
		task.Tags = tags
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Update 更新任务属性与标签。状态改为 done 不会发放奖励，奖励只经由 MarkDone
func (s *TaskService) Update(ctx context.Context, accountID, id uuid.UUID, input TaskInput) (*db.Task, error) {
	if err := validateTaskInput(input); err != nil {
		return nil, err
	}

	var task db.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(ownedBy(accountID)).First(&task, "id = ?", id).Error; err != nil {
			return translateLookup(err, ErrTaskNotFound, "find task")
		}
		if err := ensureGoalOwned(tx, accountID, input.GoalID); err != nil {
			return err
		}
		tags, err := findTags(tx, input.TagIDs)
		if err != nil {
			return err
		}

		applyTaskInput(&task, input)
		if err := tx.Omit("Tags").Save(&task).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if err := tx.Model(&task).Association("Tags").Replace(tags); err != nil {
			return fmt.Errorf("replace task tags: %w", err)
		}
		task.Tags = tags
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkDone 将任务置为完成并一次性发放 TaskCompletionXP。
// 已完成的任务原样返回，award 为 nil。
func (s *TaskService) MarkDone(ctx context.Context, accountID, id uuid.UUID) (*db.Task, *XPAward, error) {
	var (
		task  db.Task
		award *XPAward
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(ownedBy(accountID)).
			First(&task, "id = ?", id).Error; err != nil {
			return translateLookup(err, ErrTaskNotFound, "find task")
		}
		if !task.MarkDone() {
			return nil
		}

		result := tx.Model(&db.Task{}).
			Where("id = ? AND status <> ?", task.ID, db.TaskStatusDone).
			Update("status", db.TaskStatusDone)
		if result.Error != nil {
			return fmt.Errorf("complete task: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}

		var err error
		award, err = awardXP(ctx, tx, s.log, task.AccountID, gamification.TaskCompletionXP, SourceTask)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if award != nil {
		completionsTotal.WithLabelValues(SourceTask).Inc()
		s.log.Info("task done", "task_id", task.ID, "account_id", task.AccountID)
	}
	return &task, award, nil
}

// Delete 软删除任务
func (s *TaskService) Delete(ctx context.Context, accountID, id uuid.UUID) (*db.Task, error) {
	return softDelete[db.Task](ctx, s.db, id, ownedBy(accountID), ErrTaskNotFound, s.now())
}

// Restore 恢复被软删除的任务
func (s *TaskService) Restore(ctx context.Context, accountID, id uuid.UUID) (*db.Task, error) {
	return restoreDeleted[db.Task](ctx, s.db, id, ownedBy(accountID), ErrTaskNotFound)
}

func validateTaskInput(input TaskInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return invalidArgument("task title is required")
	}
	if input.Status != "" && !db.ValidTaskStatus(input.Status) {
		return invalidArgument("unsupported task status %q", input.Status)
	}
	return nil
}

func applyTaskInput(task *db.Task, input TaskInput) {
	task.Title = strings.TrimSpace(input.Title)
	task.Description = strings.TrimSpace(input.Description)
	if input.Status != "" {
		task.Status = input.Status
	} else if task.Status == "" {
		task.Status = db.TaskStatusPending
	}
	task.DueDate = input.DueDate
	task.GoalID = input.GoalID
}

// ensureGoalOwned 校验可选的目标引用存在且属于该账户
func ensureGoalOwned(tx *gorm.DB, accountID uuid.UUID, goalID *uuid.UUID) error {
	if goalID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&db.Goal{}).
		Where("id = ? AND account_id = ?", *goalID, accountID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check goal: %w", err)
	}
	if count == 0 {
		return ErrGoalNotFound
	}
	return nil
}

// findTags 按 ID 加载活动标签，任一不存在时返回 ErrTagNotFound
func findTags(tx *gorm.DB, ids []uuid.UUID) ([]db.Tag, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []db.Tag{}, nil
	}

	var tags []db.Tag
	if err := tx.Where("id IN ?", ids).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	if len(tags) != len(ids) {
		return nil, ErrTagNotFound
	}
	return tags, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
