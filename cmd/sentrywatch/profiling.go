package main

import (
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub002/internal/config"
	"github.com/yanun0323/logs"
)

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...any) { logs.Debugf("pyroscope: "+format, args...) }
func (profilerLogger) Debugf(format string, args ...any) { logs.Debugf("pyroscope: "+format, args...) }
func (profilerLogger) Errorf(format string, args ...any) { logs.Warnf("pyroscope: "+format, args...) }

// startProfiler starts continuous profiling when an address is configured.
// The returned stop function is always safe to call.
func startProfiler(cfg config.PyroscopeConfig) (func(), error) {
	if cfg.Address == "" {
		return func() {}, nil
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.AppName,
		ServerAddress:   cfg.Address,
		Tags:            map[string]string{"version": version},
		Logger:          profilerLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return func() {}, err
	}
	return func() { _ = profiler.Stop() }, nil
}
