package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds Pyroscope continuous profiling configuration.
type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string // e.g. "http://pyroscope:4040"
	ApplicationName   string
	BasicAuthUser     string // optional, for Grafana Cloud
	BasicAuthPassword string

	ProfileCPU           bool
	ProfileAllocObjects  bool
	ProfileAllocSpace    bool
	ProfileInuseObjects  bool
	ProfileInuseSpace    bool
	ProfileGoroutines    bool
	ProfileMutexCount    bool
	ProfileMutexDuration bool
	ProfileBlockCount    bool
	ProfileBlockDuration bool

	MutexProfileFraction int // default 5
	BlockProfileRate     int // default 5
	DisableGCRuns        bool
}

// Profiler wraps the Pyroscope profiler with lifecycle management.
// When profiling is disabled the profiler is inert.
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	config   ProfilerConfig
	mu       sync.Mutex
	stopped  bool
}

// NewProfiler creates and starts a Pyroscope profiler. Mutex and block
// profiling set their runtime sampling rates before the profiler starts.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{
		logger: logger,
		config: cfg,
	}

	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled, using no-op profiler")
		return p, nil
	}

	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("profiler server address is required when profiling is enabled")
	}
	if cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler application name is required when profiling is enabled")
	}

	if cfg.ProfileMutexCount || cfg.ProfileMutexDuration {
		fraction := cfg.MutexProfileFraction
		if fraction <= 0 {
			fraction = 5
		}
		runtime.SetMutexProfileFraction(fraction)
	}
	if cfg.ProfileBlockCount || cfg.ProfileBlockDuration {
		rate := cfg.BlockProfileRate
		if rate <= 0 {
			rate = 5
		}
		runtime.SetBlockProfileRate(rate)
	}

	profileTypes := p.buildProfileTypes()
	if len(profileTypes) == 0 {
		logger.Warn("No profile types enabled, profiler will not collect any data")
	}

	tags := map[string]string{}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		tags["hostname"] = hostname
	}
	if podName := os.Getenv("POD_NAME"); podName != "" {
		tags["pod"] = podName
	}

	pyroscopeCfg := pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          newPyroscopeLogger(logger),
		Tags:            tags,
		ProfileTypes:    profileTypes,
		DisableGCRuns:   cfg.DisableGCRuns,
	}
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPassword != "" {
		pyroscopeCfg.BasicAuthUser = cfg.BasicAuthUser
		pyroscopeCfg.BasicAuthPassword = cfg.BasicAuthPassword
	}

	profiler, err := pyroscope.Start(pyroscopeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = profiler

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
		zap.Int("profile_types", len(profileTypes)),
	)

	return p, nil
}

func (p *Profiler) buildProfileTypes() []pyroscope.ProfileType {
	var types []pyroscope.ProfileType

	if p.config.ProfileCPU {
		types = append(types, pyroscope.ProfileCPU)
	}
	if p.config.ProfileAllocObjects {
		types = append(types, pyroscope.ProfileAllocObjects)
	}
	if p.config.ProfileAllocSpace {
		types = append(types, pyroscope.ProfileAllocSpace)
	}
	if p.config.ProfileInuseObjects {
		types = append(types, pyroscope.ProfileInuseObjects)
	}
	if p.config.ProfileInuseSpace {
		types = append(types, pyroscope.ProfileInuseSpace)
	}
	if p.config.ProfileGoroutines {
		types = append(types, pyroscope.ProfileGoroutines)
	}
	if p.config.ProfileMutexCount {
		types = append(types, pyroscope.ProfileMutexCount)
	}
	if p.config.ProfileMutexDuration {
		types = append(types, pyroscope.ProfileMutexDuration)
	}
	if p.config.ProfileBlockCount {
		types = append(types, pyroscope.ProfileBlockCount)
	}
	if p.config.ProfileBlockDuration {
		types = append(types, pyroscope.ProfileBlockDuration)
	}

	return types
}

// Stop flushes pending profiles and stops the profiler. Safe to call
// more than once. The Pyroscope SDK's Stop has no context support, but
// it uses internal timeouts so it will not block indefinitely.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true

	if p.profiler == nil {
		return nil
	}

	if err := p.profiler.Stop(); err != nil {
		p.logger.Error("Error stopping profiler", zap.Error(err))
		return fmt.Errorf("failed to stop profiler: %w", err)
	}
	return nil
}

// IsEnabled reports whether profiling is active.
func (p *Profiler) IsEnabled() bool {
	return p.config.Enabled && p.profiler != nil
}

// GetConfig returns a copy of the profiler configuration.
func (p *Profiler) GetConfig() ProfilerConfig {
	return p.config
}

// pyroscopeLogger adapts zap to the pyroscope.Logger interface.
type pyroscopeLogger struct {
	logger *zap.Logger
}

func newPyroscopeLogger(logger *zap.Logger) pyroscope.Logger {
	return &pyroscopeLogger{logger: logger.Named("pyroscope")}
}

func (l *pyroscopeLogger) Infof(format string, args ...any) {
	l.logger.Sugar().Infof(format, args...)
}

func (l *pyroscopeLogger) Debugf(format string, args ...any) {
	l.logger.Sugar().Debugf(format, args...)
}

func (l *pyroscopeLogger) Errorf(format string, args ...any) {
	l.logger.Sugar().Errorf(format, args...)
}
