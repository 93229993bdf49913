package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/intakeplan/internal/handler"
)

const defaultSessionSecret = "intakeplan-dev-secret"

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	secret := strings.TrimSpace(sessionSecret)
	if secret == "" {
		secret = defaultSessionSecret
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("intakeplan_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/auth/login", api.Login)
		apiGroup.POST("/auth/logout", api.Logout)

		// 需要认证的接口
		auth := apiGroup.Group("")
		auth.Use(api.AuthRequired())
		{
			auth.GET("/products/search", api.SearchProducts)

			auth.POST("/schedules", api.CreateSchedule)
			auth.GET("/schedules", api.ListSchedules)
			auth.GET("/schedules/daily", api.DailySchedules)
			auth.GET("/schedules/weekly", api.WeeklySchedules)
			auth.GET("/schedules/occurrences", api.ListOccurrences)
			auth.PUT("/schedules/:id", api.UpdateSchedule)
			auth.DELETE("/schedules/:id", api.DeleteSchedule)
			auth.POST("/schedules/:id/logs", api.MarkTaken)
			auth.DELETE("/schedules/:id/logs/:date", api.UnmarkTaken)

			auth.GET("/plans/:id", api.GetPlan)
			auth.GET("/calendar.ics", api.ExportCalendar)
		}
	}

	return r
}
