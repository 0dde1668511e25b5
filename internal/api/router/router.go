package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classhub/config"
	"classhub/internal/api/handler"
	"classhub/internal/api/middleware"
	"classhub/internal/model"
	"classhub/pkg/jwt"
	"classhub/pkg/redis"
	"classhub/pkg/storage"
)

// 登录 / 注册限流：每个 IP 每分钟 10 次
const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时黑名单与限流降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	var (
		checker middleware.TokenChecker
		limiter middleware.Limiter
	)
	if rdb != nil {
		checker, limiter = rdb, rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── 本地附件 ──
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "local" {
		r.Static(storage.LocalPrefix, cfg.Storage.LocalDir)
	}

	teacherOnly := middleware.RoleAuth(model.RoleTeacher)
	studentOnly := middleware.RoleAuth(model.RoleStudent)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(limiter, authRateLimit, authRateWindow), h.Auth.Login)
			auth.POST("/register", middleware.RateLimit(limiter, authRateLimit, authRateWindow), h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, checker, logger))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 班级模块
			classrooms := authorized.Group("/classrooms")
			{
				classrooms.GET("", h.Classroom.ListClassrooms)
				classrooms.POST("", teacherOnly, h.Classroom.CreateClassroom)
				classrooms.POST("/join", studentOnly, h.Classroom.JoinClassroom)
				classrooms.GET("/:id", h.Classroom.GetClassroom)
				classrooms.GET("/:id/calendar.ics", h.Export.ExportCalendar)
			}

			// 作业模块
			assignments := authorized.Group("/assignments")
			{
				assignments.POST("", teacherOnly, h.Assignment.CreateAssignment)
				assignments.GET("/classroom/:classroomId", h.Assignment.ListClassroomAssignments)
				assignments.GET("/:id", h.Assignment.GetAssignment)
				assignments.PUT("/:id", teacherOnly, h.Assignment.UpdateAssignment)
				assignments.DELETE("/:id", teacherOnly, h.Assignment.DeleteAssignment)
				assignments.PUT("/:id/publish", teacherOnly, h.Assignment.TogglePublish)

				// 学生提交
				assignments.POST("/:id/submit", studentOnly, h.Assignment.SubmitAssignment)
				assignments.POST("/:id/mark-done", studentOnly, h.Assignment.MarkDone)
				assignments.POST("/:id/unsubmit", studentOnly, h.Assignment.UnsubmitAssignment)

				// 批改与导出
				assignments.POST("/:id/grade", teacherOnly, h.Assignment.GradeSubmission)
				assignments.POST("/:id/submissions/:studentId/grade", teacherOnly, h.Assignment.GradeSubmission)
				assignments.GET("/:id/grades/export", teacherOnly, h.Export.ExportGrades)

				// 评论（班级成员）
				assignments.POST("/:id/comments", h.Assignment.AddComment)
			}
		}
	}

	return r
}
