package kestrel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

// API serves a small read-only status surface over HTTP: bot health,
// and the user progression leaderboard. It never mutates state.
type API struct {
	config *APIConfig
	logger *slog.Logger
	engine *gin.Engine
	k      *Kestrel
}

func newAPI(k *Kestrel, config *APIConfig) *API {
	a := &API{config: config, k: k}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(a.logMiddleware(), gin.Recovery())
	if len(config.CORS.AllowOrigins) > 0 {
		engine.Use(cors.New(config.CORS.GINConfig()))
	}

	engine.GET("/api/health", a.health)
	engine.GET("/api/users", a.listUsers)
	engine.GET("/api/users/:id", a.getUser)

	a.engine = engine
	return a
}

// Serve listens on the configured address and serves until ctx is
// canceled, then shuts the server down gracefully.
func (a *API) Serve(ctx context.Context) error {
	if a.logger == nil {
		a.logger = slog.New(
			tint.NewHandler(
				os.Stdout,
				&tint.Options{Level: a.config.LogLevel, AddSource: true},
			),
		).With(loggerNameKey, "api")
	}
	listener, err := net.Listen(a.config.ListenNetwork, a.config.Listen)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", a.config.Listen, err)
	}
	srv := &http.Server{
		Handler:           a.engine,
		ReadTimeout:       a.config.ReadTimeout,
		ReadHeaderTimeout: a.config.ReadHeaderTimeout,
		WriteTimeout:      a.config.WriteTimeout,
		IdleTimeout:       a.config.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	a.logger.Info("api listening", "address", listener.Addr().String())

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *API) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger := a.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info(
			"request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (a *API) health(c *gin.Context) {
	c.JSON(
		http.StatusOK, gin.H{
			"status":           "ok",
			"uptime":           a.k.Uptime().String(),
			"connected":        a.k.discord.connected.Load(),
			"messages_handled": a.k.messagesHandled.Load(),
			"gateway_connects": a.k.discord.meterConnects.Load(),
		},
	)
}

// listUsers returns all known users ordered by XP descending.
func (a *API) listUsers(c *gin.Context) {
	var users []User
	err := a.k.writeDB.DB().Order("xp desc").Find(&users).Error
	if err != nil {
		a.logger.Error("error listing users", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (a *API) getUser(c *gin.Context) {
	userID := c.Param("id")
	var user User
	err := a.k.writeDB.DB().Where("id = ?", userID).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		a.logger.Error("error loading user", tint.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	c.JSON(http.StatusOK, user)
}
