// Package server exposes the session pool over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/entrhq/browserpool/pkg/browserpool"
	"github.com/entrhq/browserpool/pkg/visit"
)

// Pool is the part of *browserpool.Pool the server uses.
type Pool interface {
	visit.SessionSource
	Len() int
	Sessions() []browserpool.SessionInfo
}

// VisitFunc performs a page visit. visit.Visit is the production implementation.
type VisitFunc func(ctx context.Context, src visit.SessionSource, key, rawURL string, opts visit.Options) (*visit.Result, error)

// Options configures the HTTP layer.
type Options struct {
	// Visit holds the defaults applied to every visit
	Visit visit.Options

	Logger browserpool.Logger
}

// Server routes requests to a session pool.
type Server struct {
	pool   Pool
	visit  VisitFunc
	opts   visit.Options
	log    browserpool.Logger
	newKey func() string
	engine *gin.Engine
}

// New creates a server backed by pool.
func New(pool Pool, opts Options) *Server {
	s := &Server{
		pool:   pool,
		visit:  visit.Visit,
		opts:   opts.Visit,
		log:    opts.Logger,
		newKey: uuid.NewString,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(s.requestLogger(), gin.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, c.Request.URL.Path+" not found")
	})

	engine.GET("/visit", s.handleVisit)
	engine.GET("/healthz", s.handleHealth)

	sessions := engine.Group("/sessions")
	{
		sessions.GET("", s.handleListSessions)
		sessions.DELETE(":key", s.handleReleaseSession)
	}
	return engine
}

// handleVisit loads ?url= in a session. With ?session= the session is kept
// under that key for later visits; otherwise a throwaway key is used.
func (s *Server) handleVisit(c *gin.Context) {
	opts := s.opts

	key := c.Query("session")
	if key != "" {
		opts.Keep = true
	} else {
		key = s.newKey()
	}

	if raw := c.Query("max_length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, http.StatusBadRequest, "max_length must be a positive integer")
			return
		}
		opts.MaxLength = n
	}

	result, err := s.visit(c.Request.Context(), s.pool, key, c.Query("url"), opts)
	if err != nil {
		status := statusFor(err)
		if status != http.StatusBadRequest && s.log != nil {
			s.log.Warnf("visit %q failed: %v", key, err)
		}
		abortWithError(c, status, err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions := s.pool.Sessions()

	if pattern := c.Query("match"); pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid match pattern: "+err.Error())
			return
		}
		matched := make([]browserpool.SessionInfo, 0, len(sessions))
		for _, info := range sessions {
			if g.Match(info.Key) {
				matched = append(matched, info)
			}
		}
		sessions = matched
	}

	if sessions == nil {
		sessions = []browserpool.SessionInfo{}
	}
	c.JSON(http.StatusOK, sessions)
}

// handleReleaseSession is idempotent: releasing an unknown key succeeds.
func (s *Server) handleReleaseSession(c *gin.Context) {
	s.pool.Release(c.Param("key"))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.pool.Len(),
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.log != nil {
			s.log.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, visit.ErrInvalidURL), errors.Is(err, browserpool.ErrEmptyKey):
		return http.StatusBadRequest
	case errors.Is(err, browserpool.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
