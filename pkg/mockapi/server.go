package mockapi

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unisrv/unisrv-cli/pkg/metrics"
	"github.com/unisrv/unisrv-cli/pkg/ratelimit"
	"github.com/unisrv/unisrv-cli/pkg/system"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

type Options struct {
	// Users maps usernames to passwords accepted by basic login.
	Users      map[string]string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SigningKey signs access tokens. A random key is used when empty.
	SigningKey []byte
	Log        *zap.Logger
	Debug      bool
	// AllowOrigins enables CORS for browser based tooling.
	AllowOrigins []string
	// EdgeAddress is the address reported for exposed instance ports.
	EdgeAddress string
	// LoginLimit throttles login and refresh per client IP. Zero values use
	// ratelimit.DefaultLoginConfig.
	LoginLimit ratelimit.Config
}

type Server struct {
	engine *gin.Engine
	log    *zap.SugaredLogger
	opts   Options

	requests atomic.Int64
	portSeq  atomic.Int32

	mu        sync.Mutex
	users     map[string]string
	access    map[string]string
	refresh   map[uuid.UUID]*refreshSession
	instances map[uuid.UUID]*instanceRecord
	services  map[uuid.UUID]*serviceRecord
	networks  map[uuid.UUID]*networkRecord
	hosts     map[uuid.UUID]*hostRecord
}

func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = make([]byte, 32)
		_, _ = rand.Read(opts.SigningKey)
	}
	if opts.EdgeAddress == "" {
		opts.EdgeAddress = "70.34.214.14"
	}
	if opts.LoginLimit.Rate <= 0 {
		opts.LoginLimit = ratelimit.DefaultLoginConfig()
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		log:       opts.Log.Sugar(),
		opts:      opts,
		users:     map[string]string{},
		access:    map[string]string{},
		refresh:   map[uuid.UUID]*refreshSession{},
		instances: map[uuid.UUID]*instanceRecord{},
		services:  map[uuid.UUID]*serviceRecord{},
		networks:  map[uuid.UUID]*networkRecord{},
		hosts:     map[uuid.UUID]*hostRecord{},
	}
	for name, password := range opts.Users {
		s.users[name] = password
	}
	s.portSeq.Store(20000)

	engine := gin.New()
	engine.Use(
		s.countRequests,
		ginzap.Ginzap(opts.Log, time.RFC3339, true),
		ginzap.RecoveryWithZap(opts.Log, true),
		s.requestLogger,
	)
	if len(opts.AllowOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	engine.NoRoute(func(c *gin.Context) {
		abortWithReason(c, http.StatusNotFound, "no route for %s %s", c.Request.Method, c.Request.URL.Path)
	})

	limiter := ratelimit.New(opts.LoginLimit).Middleware(nil)
	engine.POST("/auth/login/basic", limiter, s.login)
	engine.POST("/auth/refresh", limiter, s.refreshSession)

	authed := engine.Group("", s.authMiddleware)
	authed.GET("/instance/list", s.listInstances)
	authed.POST("/instance", s.createInstance)
	authed.GET("/instance/:id", s.getInstance)
	authed.DELETE("/instance/:id", s.stopInstance)
	authed.POST("/instance/:id/tcp", s.exposeInstance)
	authed.GET("/instance/:id/logs/stream", s.streamLogs)

	authed.GET("/services", s.listServices)
	authed.POST("/service", s.createService)
	authed.GET("/service/:id", s.getService)
	authed.PUT("/service/:id", s.updateService)
	authed.DELETE("/service/:id", s.deleteService)
	authed.POST("/service/:id/target", s.addTarget)
	authed.DELETE("/service/:id/target/:tid", s.deleteTarget)

	authed.GET("/networks", s.listNetworks)
	authed.POST("/network", s.createNetwork)
	authed.GET("/network/:id", s.getNetwork)
	authed.DELETE("/network/:id", s.deleteNetwork)

	authed.GET("/hosts", s.listHosts)
	authed.POST("/hosts", s.claimHost)
	authed.DELETE("/hosts/:id", s.deleteHost)
	authed.POST("/hosts/:id/cert", s.requestCertificate)

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Requests returns how many HTTP requests the server has received.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// AddUser registers or replaces a basic login account.
func (s *Server) AddUser(name, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[name] = password
}

// ExpireAccessTokens invalidates every issued access token while keeping
// refresh sessions usable.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
}

// RevokeSessions invalidates access tokens and refresh sessions.
func (s *Server) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
	s.refresh = map[uuid.UUID]*refreshSession{}
}

func (s *Server) countRequests(c *gin.Context) {
	s.requests.Add(1)
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	metrics.APIRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
}

func (s *Server) requestLogger(c *gin.Context) {
	reqLogger := s.log.With("method", c.Request.Method, "path", c.Request.URL.Path)
	c.Set(system.ReqLoggerKey, reqLogger)
	c.Next()
}

func abortWithReason(c *gin.Context, code int, format string, args ...any) {
	c.AbortWithStatusJSON(code, gin.H{"reason": fmt.Sprintf(format, args...)})
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithReason(c, http.StatusBadRequest, "invalid %s: %s", name, c.Param(name))
		return uuid.Nil, false
	}
	return id, true
}
