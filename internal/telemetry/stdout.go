package telemetry

import "github.com/rjboer/GoBladeRF/internal/logging"

// StdoutReporter bridges diagnostic events onto the structured logger.
type StdoutReporter struct {
	logger logging.Logger
}

// NewStdoutReporter builds a reporter backed by the provided logger.
func NewStdoutReporter(logger logging.Logger) StdoutReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return StdoutReporter{logger: logger}
}

// LogEvent implements Reporter.
func (r StdoutReporter) LogEvent(level, message string) {
	fields := []logging.Field{{Key: "subsystem", Value: "telemetry"}}
	switch level {
	case "error":
		r.logger.Error(message, fields...)
	case "warn":
		r.logger.Warn(message, fields...)
	case "debug":
		r.logger.Debug(message, fields...)
	default:
		r.logger.Info(message, fields...)
	}
}
