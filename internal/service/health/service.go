package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/ports"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness response
type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker defines a health check function
type Checker func(ctx context.Context) CheckResult

// Readiness is the orchestrator view the service needs.
type Readiness interface {
	Status() ports.StatusReport
}

type registered struct {
	check    Checker
	critical bool
}

// Service aggregates readiness. Only critical checkers can make the
// service not ready; the rest degrade it.
type Service struct {
	startTime time.Time
	version   string
	checkers  map[string]registered
	log       *zap.Logger
	mu        sync.RWMutex
}

// Config holds health service configuration
type Config struct {
	Version      string
	DB           *sql.DB
	Redis        *redis.Client
	Orchestrator Readiness
}

// NewService creates a new health service
func NewService(config *Config, log *zap.Logger) *Service {
	s := &Service{
		startTime: time.Now(),
		version:   config.Version,
		checkers:  make(map[string]registered),
		log:       log,
	}

	if config.Orchestrator != nil {
		s.RegisterChecker("orchestrator", OrchestratorChecker(config.Orchestrator), true)
	}
	if config.DB != nil {
		s.RegisterChecker("database", pingChecker("database", config.DB.PingContext, log), false)
	}
	if config.Redis != nil {
		rdb := config.Redis
		s.RegisterChecker("redis", pingChecker("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}, log), false)
	}

	return s
}

// RegisterChecker registers a health checker
func (s *Service) RegisterChecker(name string, checker Checker, critical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = registered{check: checker, critical: critical}
	s.log.Info("Registered health checker", zap.String("name", name), zap.Bool("critical", critical))
}

// RegisterProbe adapts a ports.HealthChecker.
func (s *Service) RegisterProbe(name string, probe ports.HealthChecker, critical bool) {
	s.RegisterChecker(name, pingChecker(name, probe.Check, s.log), critical)
}

// Health performs a basic liveness check
func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now(),
	}
}

// Ready performs a comprehensive readiness check
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]registered, len(s.checkers))
	for k, v := range s.checkers {
		checkers[k] = v
	}
	s.mu.RUnlock()

	// Run all checks concurrently
	results := make(map[string]CheckResult)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, r := range checkers {
		wg.Add(1)
		go func(name string, r registered) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			result := r.check(checkCtx)
			if !r.critical && result.Status == StatusUnhealthy {
				result.Status = StatusDegraded
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, r)
	}

	wg.Wait()

	overallStatus := StatusHealthy
	allReady := true

	for _, result := range results {
		if result.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			allReady = false
		} else if result.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		}
	}

	return &ReadyResponse{
		Ready:     allReady,
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// OrchestratorChecker maps the orchestrator state onto a check result.
func OrchestratorChecker(o Readiness) Checker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		report := o.Status()
		result := CheckResult{
			Name:      "orchestrator",
			Message:   report.Message,
			Timestamp: start,
		}
		switch {
		case !report.Ready:
			result.Status = StatusUnhealthy
		case report.State == "degraded":
			result.Status = StatusDegraded
		default:
			result.Status = StatusHealthy
		}
		result.Duration = time.Since(start)
		return result
	}
}

func pingChecker(name string, ping func(context.Context) error, log *zap.Logger) Checker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		result := CheckResult{
			Name:      name,
			Timestamp: start,
		}

		err := ping(ctx)
		result.Duration = time.Since(start)

		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = fmt.Sprintf("ping failed: %v", err)
			log.Warn("Health check failed", zap.String("name", name), zap.Error(err))
		} else {
			result.Status = StatusHealthy
			result.Message = "connection ok"
		}

		return result
	}
}
