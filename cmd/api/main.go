package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spot/internal/apperr"
	"spot/internal/attendance"
	"spot/internal/auth"
	"spot/internal/clock"
	"spot/internal/config"
	"spot/internal/httpmiddleware"
	"spot/internal/qrtoken"
	"spot/internal/queue"
	"spot/internal/roster"
	"spot/internal/session"
	"spot/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "spot:attendance")
	}

	clk := clock.New(cfg.Timezone)
	sections := roster.NewRepository(db.Client)
	sessionRepo := session.NewRepository(db.Client)
	sessions := session.NewService(sessionRepo, sections, clk)
	tokens := qrtoken.NewService(qrtoken.NewRepository(db.Client), sessionRepo, sections, clk, cfg.QRCodeTTL)
	att := attendance.NewService(attendance.NewRepository(db.Client), tokens, sections, clk)
	ctx := context.Background()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	teacherAuth := auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleTeacher)
	studentAuth := auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStudent)
	anyAuth := auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, "")

	v1 := r.Group("/v1")

	v1.POST("/sections/:id/sessions", teacherAuth, func(c *gin.Context) {
		sectionID, ok := pathID(c, "id")
		if !ok {
			return
		}
		teacherID, _ := auth.CallerID(c)
		var req struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		// Body is optional for a bare scheduled session.
		_ = c.ShouldBindJSON(&req)
		sess, err := sessions.Create(c.Request.Context(), sectionID, teacherID, req.Title, req.Description)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, sess)
	})

	v1.GET("/sections/:id/sessions", anyAuth, func(c *gin.Context) {
		sectionID, ok := pathID(c, "id")
		if !ok {
			return
		}
		list, err := sessions.ListBySection(c.Request.Context(), sectionID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	})

	v1.GET("/sessions/:id", anyAuth, func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		sess, err := sessions.Get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	})

	transition := func(fn func(ctx context.Context, id, teacherID int64) (session.Session, error)) gin.HandlerFunc {
		return func(c *gin.Context) {
			id, ok := pathID(c, "id")
			if !ok {
				return
			}
			teacherID, _ := auth.CallerID(c)
			sess, err := fn(c.Request.Context(), id, teacherID)
			if err != nil {
				fail(c, err)
				return
			}
			c.JSON(http.StatusOK, sess)
		}
	}
	v1.POST("/sessions/:id/start", teacherAuth, transition(sessions.Start))
	v1.POST("/sessions/:id/end", teacherAuth, transition(sessions.End))
	v1.POST("/sessions/:id/cancel", teacherAuth, transition(sessions.Cancel))

	v1.DELETE("/sessions/:id", teacherAuth, func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		teacherID, _ := auth.CallerID(c)
		if err := sessions.Delete(c.Request.Context(), id, teacherID); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	// Teacher generates a scannable code for the section's active session.
	v1.POST("/attendance/generate-qr", teacherAuth, func(c *gin.Context) {
		sectionID, err := strconv.ParseInt(c.Query("section_id"), 10, 64)
		if err != nil || sectionID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "section_id required"})
			return
		}
		teacherID, _ := auth.CallerID(c)

		active, err := sessions.ActiveBySection(c.Request.Context(), sectionID)
		if err != nil {
			fail(c, err)
			return
		}
		if len(active) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "no active session found for this section",
				"message": "start a session before generating a QR code",
			})
			return
		}

		ttl := cfg.QRCodeTTL
		if v := c.Query("ttl"); v != "" {
			if parsed, perr := time.ParseDuration(v); perr == nil && parsed > 0 {
				ttl = parsed
			}
		}

		tok, err := tokens.Issue(c.Request.Context(), active[0].ID, teacherID, ttl)
		if err != nil {
			fail(c, err)
			return
		}

		png, err := qrtoken.PNG(tok.Value)
		if err != nil {
			log.Printf("qr render failed for session %d: %v", active[0].ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
			return
		}

		section, err := sections.SectionByID(c.Request.Context(), sectionID)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"code":        tok.Value,
			"expires_at":  tok.ExpiresAt,
			"session_id":  tok.SessionID,
			"section_id":  sectionID,
			"course_name": section.CourseName,
			"date":        clk.Today().Format("2006-01-02"),
			"url":         cfg.FrontendURL + "/attendance/log/" + strconv.FormatInt(sectionID, 10),
			"image":       base64.StdEncoding.EncodeToString(png),
		})
	})

	// Current active code for display refresh; 204 when none.
	v1.GET("/attendance/qr", teacherAuth, func(c *gin.Context) {
		sectionID, err := strconv.ParseInt(c.Query("section_id"), 10, 64)
		if err != nil || sectionID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "section_id required"})
			return
		}
		active, err := sessions.ActiveBySection(c.Request.Context(), sectionID)
		if err != nil {
			fail(c, err)
			return
		}
		if len(active) == 0 {
			c.Status(http.StatusNoContent)
			return
		}
		tok, err := tokens.ActiveForSession(c.Request.Context(), active[0].ID)
		if err != nil {
			fail(c, err)
			return
		}
		if tok == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": tok.Value, "expires_at": tok.ExpiresAt, "session_id": tok.SessionID})
	})

	v1.GET("/qrcodes/:value/image", anyAuth, func(c *gin.Context) {
		value := c.Param("value")
		if _, err := tokens.Get(c.Request.Context(), value); err != nil {
			fail(c, err)
			return
		}
		png, err := qrtoken.PNG(value)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	v1.POST("/qrcodes/:value/deactivate", teacherAuth, func(c *gin.Context) {
		teacherID, _ := auth.CallerID(c)
		if err := tokens.Deactivate(c.Request.Context(), c.Param("value"), teacherID); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	// Student redeems a scanned code.
	v1.POST("/attendance/log", studentAuth, func(c *gin.Context) {
		var req struct {
			Code string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		studentID, _ := auth.CallerID(c)

		rec, err := att.Log(c.Request.Context(), studentID, req.Code)
		if err != nil {
			fail(c, err)
			return
		}

		if err := q.Publish(ctx, queue.Message{Type: "attendance", Body: []byte(strconv.FormatInt(rec.ID, 10))}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}

		c.JSON(http.StatusCreated, rec)
	})

	v1.GET("/attendance/student/:id", teacherAuth, func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		recs, err := att.ByStudent(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendances": recs})
	})

	v1.GET("/attendance/section/:id", teacherAuth, func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var date *time.Time
		if v := c.Query("date"); v != "" {
			parsed, perr := time.Parse("2006-01-02", v)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			date = &parsed
		}
		recs, err := att.BySection(c.Request.Context(), id, date)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendances": recs})
	})

	v1.DELETE("/attendance/:id", teacherAuth, func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := att.Delete(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// pathID parses a positive int64 path parameter, writing the 400 itself.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// fail maps service errors to HTTP statuses. AlreadyLogged and the token
// verification failures are expected outcomes; each keeps its own message so
// clients can tell "already recorded" from a genuine failure.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrExpired),
		errors.Is(err, apperr.ErrInactive),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAlreadyLogged):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
