// Package logger provides the structured logging interface used across pinrunner.
//
// It wraps zerolog. Components never log through a package global: each one
// receives a Logger at construction and usually tags it with Component.
//
//	log, err := logger.New(&cfg.Logging)
//	exec := executor.New(cfg, executor.WithLogger(logger.Component(log, "executor")))
//
// Tests use NewTestLogger to assert on emitted events instead of parsing output:
//
//	tl := logger.NewTestLogger()
//	...
//	assert.True(t, tl.HasMessage("operation failed"))
package logger
