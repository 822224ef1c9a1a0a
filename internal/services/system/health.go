// Package system provides system-level services for monitoring and health.
package system

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"hongeet.dev/backend/internal/utils"
)

// HealthStatus represents the health status of a component or of the whole system.
type HealthStatus string

const (
	// StatusHealthy indicates every component passed its check.
	StatusHealthy HealthStatus = "healthy"
	// StatusDegraded indicates a non-critical component failed.
	StatusDegraded HealthStatus = "degraded"
	// StatusUnhealthy indicates a critical component failed.
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck probes one dependency. Critical failures make the system unhealthy,
// the rest only degrade it.
type HealthCheck struct {
	Name     string
	Critical bool

	// Probe returns a short description on success.
	Probe func(ctx context.Context) (string, error)
}

// ComponentHealth represents the health of a system component.
type ComponentHealth struct {
	Name        string       `json:"name"`
	Status      HealthStatus `json:"status"`
	Description string       `json:"description,omitempty"`
	Latency     int64        `json:"latency_ms"` // Response time in milliseconds
	LastChecked time.Time    `json:"last_checked"`
}

// SystemHealth represents the overall health of the system.
type SystemHealth struct {
	Status      HealthStatus      `json:"status"`
	Components  []ComponentHealth `json:"components"`
	Version     string            `json:"version"`
	Environment string            `json:"environment"`
	Uptime      int64             `json:"uptime_seconds"`
	StartTime   time.Time         `json:"start_time"`
	GoVersion   string            `json:"go_version"`
	GoRoutines  int               `json:"go_routines"`
	MemStats    MemoryStats       `json:"memory_stats"`
}

// MemoryStats represents memory usage statistics.
type MemoryStats struct {
	Alloc     uint64 `json:"alloc_bytes"`
	Sys       uint64 `json:"sys_bytes"`
	NumGC     uint32 `json:"num_gc"`
	HeapAlloc uint64 `json:"heap_alloc_bytes"`
}

// HealthService runs the registered checks periodically and on demand.
type HealthService struct {
	checks         []HealthCheck
	logger         *utils.Logger
	startTime      time.Time
	version        string
	environment    string
	componentCache map[string]ComponentHealth
	cacheMutex     sync.RWMutex
	checkInterval  time.Duration
	checkTimeout   time.Duration
}

// HealthServiceConfig contains configuration for the health service.
type HealthServiceConfig struct {
	Version     string
	Environment string

	// CheckInterval defaults to 30s.
	CheckInterval time.Duration
}

// NewHealthService creates a new health service.
func NewHealthService(logger *utils.Logger, config HealthServiceConfig, checks ...HealthCheck) *HealthService {
	interval := config.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthService{
		checks:         checks,
		logger:         logger.Named("health_service"),
		startTime:      time.Now(),
		version:        config.Version,
		environment:    config.Environment,
		componentCache: make(map[string]ComponentHealth),
		checkInterval:  interval,
		checkTimeout:   10 * time.Second,
	}
}

// Start begins periodic health checks.
func (s *HealthService) Start(ctx context.Context) {
	s.logger.Info("Starting health service", "checks", len(s.checks))

	s.CheckHealth(ctx)

	go func() {
		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Stopping health service")
				return
			case <-ticker.C:
				s.CheckHealth(ctx)
			}
		}
	}()
}

// CheckHealth runs every check concurrently and caches the results.
func (s *HealthService) CheckHealth(ctx context.Context) {
	s.logger.Debug("Performing health check")

	var wg sync.WaitGroup
	for _, check := range s.checks {
		wg.Add(1)
		go func(check HealthCheck) {
			defer wg.Done()
			s.runCheck(ctx, check)
		}(check)
	}
	wg.Wait()
}

// GetHealth returns the cached health status of the system.
func (s *HealthService) GetHealth(ctx context.Context) SystemHealth {
	s.cacheMutex.RLock()
	components := make([]ComponentHealth, 0, len(s.componentCache))
	for _, component := range s.componentCache {
		components = append(components, component)
	}
	s.cacheMutex.RUnlock()

	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemHealth{
		Status:      overallStatus(components),
		Components:  components,
		Version:     s.version,
		Environment: s.environment,
		Uptime:      int64(time.Since(s.startTime).Seconds()),
		StartTime:   s.startTime,
		GoVersion:   runtime.Version(),
		GoRoutines:  runtime.NumGoroutine(),
		MemStats: MemoryStats{
			Alloc:     memStats.Alloc,
			Sys:       memStats.Sys,
			NumGC:     memStats.NumGC,
			HeapAlloc: memStats.HeapAlloc,
		},
	}
}

func overallStatus(components []ComponentHealth) HealthStatus {
	status := StatusHealthy
	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

func (s *HealthService) runCheck(ctx context.Context, check HealthCheck) {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	description, err := check.Probe(probeCtx)
	latency := time.Since(start).Milliseconds()

	status := StatusHealthy
	if err != nil {
		status = StatusDegraded
		if check.Critical {
			status = StatusUnhealthy
		}
		description = err.Error()
		s.logger.Warn("Health check failed", "component", check.Name, "error", err)
	}

	s.updateComponentHealth(check.Name, status, description, latency)
}

// updateComponentHealth updates the health status of a component in the cache.
func (s *HealthService) updateComponentHealth(name string, status HealthStatus, description string, latency int64) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.componentCache[name] = ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		Latency:     latency,
		LastChecked: time.Now(),
	}
}
