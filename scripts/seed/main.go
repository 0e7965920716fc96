package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/betterlyfe/internal/config"
	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/gamification"
	"github.com/betterlyfe/internal/logger"
	"github.com/betterlyfe/internal/service"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	seedPassword = "testpassword123"
	seedDays     = 9
)

type seedTask struct {
	title       string
	description string
	due         time.Time
	goal        string
}

type seedHabit struct {
	name string
	// 完成概率，按天抽样
	completion float64
}

type seedAccount struct {
	username string
	email    string
	first    string
	last     string
	goals    []service.GoalInput
	habits   []seedHabit
	tasks    []seedTask
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

var seedAccounts = []seedAccount{
	{
		username: "alice_j",
		email:    "alice@betterlyfe.dev",
		first:    "Alice",
		last:     "Johnson",
		goals: []service.GoalInput{
			{Name: "Finish Personal Project", Description: `Complete and launch the "ZenGarden" mobile app.`, Status: db.GoalStatusActive, TargetDate: ptr(date(2025, 12, 31))},
			{Name: "Run a 10K Marathon", Description: "Complete a 10-kilometer race.", Status: db.GoalStatusPaused, TargetDate: ptr(date(2026, 6, 1))},
		},
		habits: []seedHabit{
			{name: "Daily Code Review", completion: 0.9},
			{name: "Meditate", completion: 1},
		},
		tasks: []seedTask{
			{title: "Design Wireframes", description: "Design ZenGarden wireframes", due: date(2025, 11, 15), goal: "Finish Personal Project"},
			{title: "Setup CI/CD Pipeline", description: "Setup CI/CD pipeline", due: date(2025, 10, 20), goal: "Finish Personal Project"},
			{title: "Purchase Desk Chair", description: "Buy new desk chair", due: date(2025, 11, 1)},
		},
	},
	{
		username: "bob_s",
		email:    "bob@betterlyfe.dev",
		first:    "Bob",
		last:     "Smith",
		goals: []service.GoalInput{
			{Name: "Read 12 Books", Description: "Finish one book per month for the year.", Status: db.GoalStatusActive, TargetDate: ptr(date(2025, 12, 31))},
		},
		habits: []seedHabit{
			{name: "Read for 20 Mins", completion: 2.0 / 3},
		},
		tasks: []seedTask{
			{title: "Check Out The Martian", description: `Check out "The Martian" from library`, due: date(2025, 11, 1), goal: "Read 12 Books"},
		},
	},
}

var seedRewards = []service.RewardInput{
	{Name: "Movie Night", Description: "An evening off with a film of your choice.", CostXP: ptr(150), RewardType: db.RewardTypePrivilege},
	{Name: "Fancy Coffee", Description: "Treat yourself to a specialty coffee.", CostXP: ptr(50), RewardType: db.RewardTypeItem},
	{Name: "Golden Theme", Description: "Unlock the golden profile theme.", CostXP: ptr(300), RewardType: db.RewardTypeCosmetic},
}

var seedBadges = []service.BadgeInput{
	{Name: "First Steps", Description: "Earn your first 10 XP.", Icon: "footprints", XPRequired: 10},
	{Name: "Centurion", Description: "Reach 100 XP.", Icon: "shield", XPRequired: 100},
	{Name: "Habit Hero", Description: "Reach 500 XP.", Icon: "trophy", XPRequired: 500},
}

// 开发环境数据生成器，按用户名幂等
func main() {
	cfg := config.Load()

	appLog, err := logger.New("development")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	gdb, err := db.Init(db.Options{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		DSN:    cfg.DatabaseDSN,
	})
	if err != nil {
		appLog.Fatal("数据库初始化失败", "error", err)
	}

	today := gamification.CalendarDate(time.Now(), cfg.Timezone)
	rng := rand.New(rand.NewPCG(uint64(today.Unix()), 0))
	if err := seed(context.Background(), gdb, appLog, cfg.Timezone, today, rng); err != nil {
		appLog.Fatal("生成测试数据失败", "error", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Printf("用户: alice_j / bob_s (密码: %s)\n", seedPassword)
}

func seed(ctx context.Context, gdb *gorm.DB, log *logger.Logger, loc *time.Location, today time.Time, rng *rand.Rand) error {
	rewards := service.NewRewardService(gdb, log)
	for _, input := range seedRewards {
		if _, err := rewards.Create(ctx, input); err != nil && !errors.Is(err, service.ErrRewardExists) {
			return fmt.Errorf("seed reward %s: %w", input.Name, err)
		}
	}

	badges := service.NewBadgeService(gdb, log)
	for _, input := range seedBadges {
		if _, err := badges.Create(ctx, input); err != nil && !errors.Is(err, service.ErrBadgeExists) {
			return fmt.Errorf("seed badge %s: %w", input.Name, err)
		}
	}

	for _, account := range seedAccounts {
		if err := seedAccountData(ctx, gdb, log, loc, today, rng, account); err != nil {
			return fmt.Errorf("seed %s: %w", account.username, err)
		}
	}
	return nil
}

func seedAccountData(ctx context.Context, gdb *gorm.DB, log *logger.Logger, loc *time.Location, today time.Time, rng *rand.Rand, data seedAccount) error {
	accounts := service.NewAccountService(gdb, log)
	account, err := accounts.Register(ctx, service.RegisterInput{
		Username:  data.username,
		Password:  seedPassword,
		Email:     data.email,
		FirstName: data.first,
		LastName:  data.last,
	})
	if errors.Is(err, service.ErrUsernameTaken) {
		log.Info("账户已存在，跳过", "username", data.username)
		return nil
	}
	if err != nil {
		return err
	}

	goals := service.NewGoalService(gdb, log)
	goalIDs := make(map[string]uuid.UUID, len(data.goals))
	for _, input := range data.goals {
		goal, err := goals.Create(ctx, account.ID, input)
		if err != nil {
			return err
		}
		goalIDs[goal.Name] = goal.ID
	}

	habits := service.NewHabitService(gdb, log, loc)
	for _, h := range data.habits {
		habit, err := habits.Create(ctx, account.ID, service.HabitInput{Name: h.name, Frequency: db.HabitFrequencyDaily})
		if err != nil {
			return err
		}
		for i := seedDays; i >= 1; i-- {
			day := today.AddDate(0, 0, -i)
			completed := rng.Float64() < h.completion
			if _, err := habits.LogEntry(ctx, account.ID, habit.ID, service.HabitEntryInput{Date: &day, Completed: completed}); err != nil {
				return err
			}
		}
	}

	tasks := service.NewTaskService(gdb, log)
	for _, t := range data.tasks {
		input := service.TaskInput{Title: t.title, Description: t.description, DueDate: ptr(t.due)}
		if id, ok := goalIDs[t.goal]; ok {
			input.GoalID = &id
		}
		if _, err := tasks.Create(ctx, account.ID, input); err != nil {
			return err
		}
	}

	log.Info("账户数据已生成", "username", data.username, "goals", len(data.goals), "habits", len(data.habits), "tasks", len(data.tasks))
	return nil
}
