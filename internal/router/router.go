package router

import (
	"github.com/betterlyfe/internal/handler"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionName = "betterlyfe_session"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret, uploadDir, uploadURLPath string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions(sessionName, store))

	// 头像等上传文件
	if uploadURLPath != "" && uploadDir != "" {
		r.Static(uploadURLPath, uploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/auth")
	{
		auth.POST("/register", api.Register)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)
	}

	// 需要登录的 API 路由，列表接口支持 ?include_deleted=1 查看墓碑记录
	v := r.Group("/api")
	v.Use(api.AuthRequired())
	{
		v.GET("/me", api.Me)
		v.DELETE("/me", api.DeleteMe)
		v.GET("/me/xp", api.GetXP)
		v.POST("/me/xp", api.AddXP)
		v.GET("/me/badges", api.ListAwardedBadges)
		v.POST("/me/badges/claim", api.ClaimEligibleBadges)
		v.DELETE("/me/badges/:id", api.RevokeAwardedBadge)
		v.POST("/me/badges/:id/restore", api.RestoreAwardedBadge)

		v.GET("/profile", api.GetProfile)
		v.PUT("/profile", api.UpdateProfile)
		v.POST("/profile/picture", api.UploadProfilePicture)
		v.DELETE("/profile", api.DeleteProfile)
		v.POST("/profile/restore", api.RestoreProfile)

		v.GET("/goals", api.ListGoals)
		v.POST("/goals", api.CreateGoal)
		v.GET("/goals/:id", api.GetGoal)
		v.PUT("/goals/:id", api.UpdateGoal)
		v.DELETE("/goals/:id", api.DeleteGoal)
		v.PUT("/goals/:id/progress", api.UpdateGoalProgress)
		v.POST("/goals/:id/complete", api.CompleteGoal)
		v.POST("/goals/:id/restore", api.RestoreGoal)

		v.GET("/tasks", api.ListTasks)
		v.POST("/tasks", api.CreateTask)
		v.GET("/tasks/:id", api.GetTask)
		v.PUT("/tasks/:id", api.UpdateTask)
		v.DELETE("/tasks/:id", api.DeleteTask)
		v.POST("/tasks/:id/done", api.CompleteTask)
		v.POST("/tasks/:id/restore", api.RestoreTask)

		v.GET("/habits", api.ListHabits)
		v.POST("/habits", api.CreateHabit)
		v.GET("/habits/:id", api.GetHabit)
		v.PUT("/habits/:id", api.UpdateHabit)
		v.DELETE("/habits/:id", api.DeleteHabit)
		v.POST("/habits/:id/restore", api.RestoreHabit)
		v.POST("/habits/:id/complete", api.CompleteHabit)
		v.GET("/habits/:id/stats", api.GetHabitStats)
		v.GET("/habits/:id/entries", api.ListHabitEntries)
		v.PUT("/habits/:id/entries", api.UpsertHabitEntry)
		v.DELETE("/habits/:id/entries/:entryID", api.DeleteHabitEntry)
		v.POST("/habits/:id/entries/:entryID/restore", api.RestoreHabitEntry)

		v.GET("/journal", api.ListJournalEntries)
		v.POST("/journal", api.CreateJournalEntry)
		v.GET("/journal/:id", api.GetJournalEntry)
		v.PUT("/journal/:id", api.UpdateJournalEntry)
		v.DELETE("/journal/:id", api.DeleteJournalEntry)
		v.POST("/journal/:id/restore", api.RestoreJournalEntry)

		v.GET("/tags", api.GetTags)
		v.POST("/tags", api.CreateTag)
		v.GET("/tags/:id", api.GetTag)
		v.PUT("/tags/:id", api.UpdateTag)
		v.DELETE("/tags/:id", api.DeleteTag)
		v.POST("/tags/:id/restore", api.RestoreTag)

		v.GET("/rewards", api.ListRewards)
		v.POST("/rewards", api.CreateReward)
		v.GET("/rewards/:id", api.GetReward)
		v.PUT("/rewards/:id", api.UpdateReward)
		v.DELETE("/rewards/:id", api.DeleteReward)
		v.POST("/rewards/:id/restore", api.RestoreReward)
		v.POST("/rewards/:id/acquire", api.AcquireReward)

		v.GET("/inventory", api.ListInventory)
		v.GET("/inventory/:id", api.GetInventoryItem)
		v.POST("/inventory/:id/use", api.UseInventoryItem)
		v.DELETE("/inventory/:id", api.DeleteInventoryItem)
		v.POST("/inventory/:id/restore", api.RestoreInventoryItem)

		v.GET("/badges", api.ListBadges)
		v.POST("/badges", api.CreateBadge)
		v.GET("/badges/eligible", api.ListEligibleBadges)
		v.GET("/badges/:id", api.GetBadge)
		v.PUT("/badges/:id", api.UpdateBadge)
		v.DELETE("/badges/:id", api.DeleteBadge)
		v.POST("/badges/:id/restore", api.RestoreBadge)
		v.POST("/badges/:id/award", api.AwardBadge)
	}

	return r
}
