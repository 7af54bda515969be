package healthcheck

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProbeFunc reports an error when the dependency is unavailable
type ProbeFunc func(ctx context.Context) error

// Probe is one named dependency check. A failing critical probe makes the
// service unhealthy; a failing non-critical one only degrades it.
type Probe struct {
	Name     string
	Check    ProbeFunc
	Critical bool
}

// Periodically probes the service's dependencies
type Checker struct {
	mu          sync.RWMutex
	probes      []Probe
	status      map[string]*Status
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	log         logrus.FieldLogger
	stopChan    chan struct{}
	running     bool
}

// Holds health checker configuration
type Config struct {
	Probes      []Probe
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Per-probe timeout (default: 2s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
	Logger      logrus.FieldLogger
}

func NewChecker(cfg *Config) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	checker := &Checker{
		probes:      cfg.Probes,
		status:      make(map[string]*Status),
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxFailures: cfg.MaxFailures,
		log:         cfg.Logger.WithField("component", "healthcheck"),
		stopChan:    make(chan struct{}),
	}

	// Assume healthy until proven otherwise
	for _, p := range cfg.Probes {
		checker.status[p.Name] = &Status{
			Name:      p.Name,
			IsHealthy: true,
			Critical:  p.Critical,
		}
	}

	return checker
}

// Begins periodic health checks
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"probes":   len(c.probes),
		"interval": c.interval.String(),
	}).Info("Starting dependency health checks")

	c.CheckAll(context.Background())

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CheckAll(context.Background())
			case <-c.stopChan:
				return
			}
		}
	}()
}

func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
		c.log.Info("Health checker stopped")
	}
}

// Runs every probe concurrently and waits for all of them
func (c *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, p := range c.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			c.checkProbe(ctx, p)
		}(p)
	}

	wg.Wait()
}

func (c *Checker) checkProbe(ctx context.Context, p Probe) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := p.Check(ctx); err != nil {
		c.recordFailure(p.Name, err)
		return
	}
	c.recordSuccess(p.Name)
}

func (c *Checker) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	status := c.status[name]
	status.LastCheck = now
	status.LastSuccess = now
	status.LastError = ""
	status.FailureCount = 0

	if !status.IsHealthy {
		c.log.WithField("probe", name).Info("Dependency is healthy again")
		status.IsHealthy = true
	}
}

func (c *Checker) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	status := c.status[name]
	status.LastCheck = now
	status.LastFailure = now
	status.LastError = err.Error()
	status.FailureCount++

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		c.log.WithFields(logrus.Fields{
			"probe":    name,
			"failures": status.FailureCount,
			"error":    err.Error(),
		}).Warn("Dependency is now unhealthy")
		status.IsHealthy = false
	}
}

// Return the health status of a specific probe
func (c *Checker) GetStatus(name string) *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if status, exists := c.status[name]; exists {
		statusCopy := *status
		return &statusCopy
	}

	return nil
}

// Returns a copy of every probe's status
func (c *Checker) GetAllStatus() map[string]*Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statusMap := make(map[string]*Status, len(c.status))
	for name, status := range c.status {
		statusCopy := *status
		statusMap[name] = &statusCopy
	}

	return statusMap
}

// Returns the overall health status
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	overall := Healthy
	for _, status := range c.status {
		if status.IsHealthy {
			continue
		}
		if status.Critical {
			return Unhealthy
		}
		overall = Degraded
	}

	return overall
}
