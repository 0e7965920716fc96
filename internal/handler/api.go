package handler

import (
	"time"

	"github.com/betterlyfe/internal/logger"
	"github.com/betterlyfe/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	log      *logger.Logger
	loc      *time.Location
	accounts *service.AccountService
	goals    *service.GoalService
	tasks    *service.TaskService
	habits   *service.HabitService
	journal  *service.JournalService
	tags     *service.TagService
	rewards  *service.RewardService
	badges   *service.BadgeService
	profiles *service.ProfileService
}

// Options 为构造 API 时的可选依赖
type Options struct {
	Logger    *logger.Logger
	Location  *time.Location
	UploadDir string
	UploadURL string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	log := logger.OrNop(opts.Logger)
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	return &API{
		db:       gdb,
		log:      log,
		loc:      loc,
		accounts: service.NewAccountService(gdb, log),
		goals:    service.NewGoalService(gdb, log),
		tasks:    service.NewTaskService(gdb, log),
		habits:   service.NewHabitService(gdb, log, loc),
		journal:  service.NewJournalService(gdb, log, loc),
		tags:     service.NewTagService(gdb),
		rewards:  service.NewRewardService(gdb, log),
		badges:   service.NewBadgeService(gdb, log),
		profiles: service.NewProfileService(gdb, log, opts.UploadDir, opts.UploadURL),
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
