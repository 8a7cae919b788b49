package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Named returns a component logger from the provider, falling back to a nop
// logger when no provider is configured.
func Named(provider glog.LoggerProvider, name string) glog.Logger {
	_, logger := glog.Resolve(name, provider, nil)
	return logger
}

// ForJob maps resolved glog handles to the go-job logger contracts so the
// processor runner logs through the same sink as the rest of the relay.
func ForJob(provider glog.LoggerProvider, logger glog.Logger) (job.LoggerProvider, job.Logger) {
	var jobProvider job.LoggerProvider
	if provider != nil {
		jobProvider = job.GoLoggerProvider(provider)
	}
	var jobLogger job.Logger
	if logger != nil {
		jobLogger = job.GoLogger(logger)
	}
	return jobProvider, jobLogger
}
