package observ

import "go.uber.org/zap"

// NewLogger builds the process-lifecycle logger used during startup and
// shutdown. Request-scoped logging goes through internal/logging instead.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
