package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/logbook"
	"classtrack/internal/logger"
	"classtrack/internal/queue"
	"classtrack/internal/report"
	"classtrack/internal/roster"
	"classtrack/internal/session"
	"classtrack/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	kv, redisClient, closeStore, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.RedisPrefix+"saves")
	}

	var seed []roster.Student
	if cfg.SeedStudents {
		seed = roster.SeedStudents()
	}
	rosterRepo := roster.NewRepo(kv, seed)
	logRepo := logbook.NewRepo(kv, log)
	engine := session.NewEngine(kv, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		healthy := true
		if cfg.StoreBackend != "memory" {
			healthy = storeHealthy(c.Request.Context(), kv)
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "store": healthy})
	})

	// Identity is established out of band; this endpoint only exchanges a
	// faculty code and role for signed tokens the middleware can verify.
	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Code string `json:"code" binding:"required"`
			Role string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != auth.RoleAdmin && req.Role != auth.RoleTeacher {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or teacher"})
			return
		}

		tokens, err := auth.Issue(req.Code, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	anyRole := auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer)
	adminOnly := auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin)

	v1 := r.Group("/v1", anyRole)

	v1.GET("/subjects", func(c *gin.Context) {
		subjects, err := rosterRepo.Subjects(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subjects": subjects})
	})

	v1.POST("/subjects", adminOnly, func(c *gin.Context) {
		var req struct {
			Name    string `json:"name" binding:"required"`
			Faculty string `json:"faculty" binding:"required"`
			Day     string `json:"day"`
			Time    string `json:"time"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		subject, err := rosterRepo.AddSubject(c.Request.Context(), roster.Subject{
			Name: req.Name, Faculty: req.Faculty, Day: req.Day, Time: req.Time,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"subject": subject})
	})

	v1.PUT("/subjects/:id", adminOnly, func(c *gin.Context) {
		var req struct {
			Name    string `json:"name" binding:"required"`
			Faculty string `json:"faculty" binding:"required"`
			Day     string `json:"day"`
			Time    string `json:"time"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := rosterRepo.UpdateSubject(c.Request.Context(), roster.Subject{
			ID: c.Param("id"), Name: req.Name, Faculty: req.Faculty, Day: req.Day, Time: req.Time,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	})

	// Deleting a subject cascades: the subject row, its log entries, and
	// every per-pair attendance/session key go together.
	v1.DELETE("/subjects/:id", adminOnly, func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")
		if err := rosterRepo.RemoveSubject(ctx, id); err != nil {
			fail(c, err)
			return
		}
		if err := logRepo.PurgeSubject(ctx, id); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "purged"})
	})

	v1.GET("/students", func(c *gin.Context) {
		students, err := rosterRepo.Students(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
	})

	v1.POST("/students", adminOnly, func(c *gin.Context) {
		var req struct {
			Name       string `json:"name" binding:"required"`
			RollNumber string `json:"rollNumber" binding:"required"`
			ClassName  string `json:"className"`
			Email      string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		student, err := rosterRepo.AddStudent(c.Request.Context(), roster.Student{
			Name: req.Name, RollNumber: req.RollNumber, ClassName: req.ClassName, Email: req.Email,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"student": student})
	})

	v1.POST("/sessions", func(c *gin.Context) {
		var req struct {
			SubjectID string `json:"subjectId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		subject, err := rosterRepo.Subject(ctx, req.SubjectID)
		if err != nil {
			fail(c, err)
			return
		}
		sess, err := engine.Start(ctx, subject, actingFaculty(c, subject), time.Now())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"session": sess})
	})

	v1.GET("/sessions/:subjectId/:date", func(c *gin.Context) {
		ctx := c.Request.Context()
		sess, err := engine.Get(ctx, c.Param("subjectId"), c.Param("date"))
		if err != nil {
			fail(c, err)
			return
		}
		students, err := rosterRepo.Students(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session":    sess,
			"attendance": engine.Snapshot(sess),
			"counts":     sess.CountMarks(len(students)),
		})
	})

	v1.POST("/sessions/:subjectId/:date/marks", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"studentId" binding:"required"`
			Status    string `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		subjectID, date := c.Param("subjectId"), c.Param("date")
		markedBy := auth.ClaimsFrom(c).Subject
		now := time.Now()

		var mark session.Mark
		var err error
		if req.Status == "" {
			// No explicit status: quick-toggle through the cycle.
			mark, err = engine.QuickToggle(ctx, subjectID, date, req.StudentID, markedBy, now)
		} else {
			status := session.Status(req.Status)
			if !status.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "status must be present, absent or late"})
				return
			}
			mark, err = engine.RecordMark(ctx, subjectID, date, req.StudentID, status, markedBy, now)
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"mark": mark})
	})

	v1.POST("/sessions/:subjectId/:date/default-present", func(c *gin.Context) {
		var req struct {
			OnlyUnmarked bool `json:"onlyUnmarked"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		students, err := rosterRepo.Students(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		sess, err := engine.ApplyDefaultPresent(ctx, c.Param("subjectId"), c.Param("date"),
			students, auth.ClaimsFrom(c).Subject, time.Now(), req.OnlyUnmarked)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"counts": sess.CountMarks(len(students))})
	})

	v1.POST("/sessions/:subjectId/:date/end", func(c *gin.Context) {
		ctx := c.Request.Context()
		sess, err := engine.Get(ctx, c.Param("subjectId"), c.Param("date"))
		if err != nil {
			fail(c, err)
			return
		}
		if err := engine.End(ctx, sess, time.Now()); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": sess})
	})

	v1.POST("/sessions/:subjectId/:date/save", func(c *gin.Context) {
		var req struct {
			MarkUnmarkedPresent bool `json:"markUnmarkedPresent"`
		}
		// An empty body means a plain save.
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		ctx := c.Request.Context()
		subjectID, date := c.Param("subjectId"), c.Param("date")
		now := time.Now()

		sess, err := engine.Get(ctx, subjectID, date)
		if err != nil {
			fail(c, err)
			return
		}
		subject, err := rosterRepo.Subject(ctx, subjectID)
		if err != nil {
			fail(c, err)
			return
		}
		students, err := rosterRepo.Students(ctx)
		if err != nil {
			fail(c, err)
			return
		}

		if req.MarkUnmarkedPresent {
			if _, err := engine.ApplyDefaultPresent(ctx, subjectID, date, students,
				auth.ClaimsFrom(c).Subject, now, true); err != nil {
				fail(c, err)
				return
			}
		}

		entry := logbook.BuildEntry(sess, engine.Snapshot(sess), subject.Time, len(students), now)
		if err := logRepo.Upsert(ctx, entry); err != nil {
			fail(c, err)
			return
		}
		if err := q.Publish(ctx, queue.SaveEvent{SubjectID: subjectID, Date: date}); err != nil {
			log.Warn().Err(err).Msg("save event publish failed")
		}
		c.JSON(http.StatusOK, gin.H{"saved": true, "entry": entry})
	})

	v1.GET("/reports/overview", func(c *gin.Context) {
		logs, err := logRepo.All(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		filtered := report.FilterByPeriod(logs, report.Period(c.DefaultQuery("period", "week")), time.Now())
		if faculty := c.Query("faculty"); faculty != "" && faculty != report.AllFaculty {
			filtered = report.FilterByFaculty(filtered, faculty)
		}
		c.JSON(http.StatusOK, report.Overview(filtered))
	})

	v1.GET("/reports/subjects", func(c *gin.Context) {
		ctx := c.Request.Context()
		logs, err := logRepo.All(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		subjects, err := rosterRepo.Subjects(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		filtered := report.FilterByPeriod(logs, report.Period(c.DefaultQuery("period", "week")), time.Now())
		if faculty := c.Query("faculty"); faculty != "" && faculty != report.AllFaculty {
			filtered = report.FilterByFaculty(filtered, faculty)
		}
		c.JSON(http.StatusOK, gin.H{"subjects": report.PerSubject(filtered, subjects)})
	})

	v1.GET("/reports/students", func(c *gin.Context) {
		ctx := c.Request.Context()
		logs, err := logRepo.All(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		students, err := rosterRepo.Students(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		filtered := report.FilterByPeriod(logs, report.Period(c.DefaultQuery("period", "week")), time.Now())
		c.JSON(http.StatusOK, gin.H{"students": report.PerStudent(filtered, students)})
	})

	v1.GET("/reports/daily", func(c *gin.Context) {
		ctx := c.Request.Context()
		date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
		teacher := c.DefaultQuery("teacher", report.AllFaculty)

		logs, err := logRepo.All(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		students, err := rosterRepo.Students(ctx)
		if err != nil {
			fail(c, err)
			return
		}
		daily := report.FilterByDateAndTeacher(logs, date, teacher)
		c.JSON(http.StatusOK, gin.H{
			"date":     date,
			"overview": report.Overview(daily),
			"classes":  daily,
			"students": report.PerStudent(daily, students),
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("store", cfg.StoreBackend).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}

	log.Info().Msg("server exited")
	return nil
}

// buildStore selects the KV backend. The redis client is returned even for
// the postgres backend because the save-event queue may still ride on it.
func buildStore(cfg config.App) (store.KV, *store.Redis, func(), error) {
	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPrefix)
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemory(), redisClient, func() {}, nil
	case "postgres":
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return pg, redisClient, func() { _ = pg.Close() }, nil
	default:
		return redisClient, redisClient, func() {}, nil
	}
}

func storeHealthy(ctx context.Context, kv store.KV) bool {
	type pinger interface{ Healthy(context.Context) bool }
	if p, ok := kv.(pinger); ok {
		return p.Healthy(ctx)
	}
	return true
}

// actingFaculty resolves who a session is taken as: teachers act as
// themselves, admins act on behalf of the subject's assigned faculty.
func actingFaculty(c *gin.Context, subject roster.Subject) string {
	claims := auth.ClaimsFrom(c)
	if claims.Role == auth.RoleTeacher && claims.Subject != "" {
		return claims.Subject
	}
	return subject.Faculty
}

// fail maps component errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotStarted):
		c.JSON(http.StatusConflict, gin.H{"error": "please start the class session first"})
	case errors.Is(err, roster.ErrSubjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "subject not found"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		// Store write/read failures are retryable: saves are idempotent
		// replace-by-key operations.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "retryable": true})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
