package httpserver

import (
	"context"
	"strconv"
	"time"

	"habitloop/internal/handler"
	"habitloop/pkg/metrics"
	"habitloop/pkg/mq"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Habits      *handler.HabitHandler
	Progress    *handler.ProgressHandler
	Contexts    *handler.ContextHandler
	Scores      *handler.ScoreHandler
	Progression *handler.ProgressionHandler
	Onboarding  *handler.OnboardingHandler
}

func NewRouter(h Handlers, jwtSecret string, logger *zap.Logger, db *pgxpool.Pool, consumer *mq.Consumer) *gin.Engine {
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
		metrics.RecordHTTPRequestDuration(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
			latency,
		)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if consumer != nil && !consumer.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/", AuthRequired(jwtSecret))

	api.POST("/habits", h.Habits.CreateHabit)
	api.GET("/habits", h.Habits.ListHabits)
	api.GET("/habits/:id", h.Habits.GetHabit)
	api.PATCH("/habits/:id", h.Habits.UpdateHabit)
	api.DELETE("/habits/:id", h.Habits.DeactivateHabit)

	api.POST("/habits/:id/progress", h.Progress.LogProgress)
	api.GET("/habits/:id/progress", h.Progress.GetProgressRange)
	api.GET("/habits/:id/stats", h.Progress.GetHabitStats)
	api.GET("/progress/today", h.Progress.GetTodayOverview)

	api.GET("/consistency", h.Scores.GetConsistency)
	api.GET("/consistency/breakdown", h.Scores.GetBreakdown)

	api.POST("/contexts", h.Contexts.CreateContext)
	api.GET("/contexts", h.Contexts.ListActiveContexts)
	api.POST("/contexts/:id/resolve", h.Contexts.ResolveContext)

	api.GET("/habits/:id/progression", h.Progression.GetProgressionStatus)
	api.POST("/progression/evaluate", h.Progression.EvaluateProgression)

	api.POST("/onboarding", h.Onboarding.Setup)

	return r
}
