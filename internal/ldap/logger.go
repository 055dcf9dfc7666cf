package ldap

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/rs/zerolog"
)

// Logger interface for interchange operations.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Trace(msg string, fields map[string]any)
}

// TFLogger wraps tflog so readers and writers can log through a provider's
// subsystem when embedded in Terraform plugin code.
type TFLogger struct {
	ctx       context.Context
	subsystem string
}

// NewTFLogger creates a new tflog-backed logger for the given subsystem.
func NewTFLogger(ctx context.Context, subsystem string) *TFLogger {
	return &TFLogger{
		ctx:       tflog.NewSubsystem(ctx, subsystem),
		subsystem: subsystem,
	}
}

func (l *TFLogger) Debug(msg string, fields map[string]any) {
	tflog.SubsystemDebug(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Info(msg string, fields map[string]any) {
	tflog.SubsystemInfo(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Warn(msg string, fields map[string]any) {
	tflog.SubsystemWarn(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Error(msg string, fields map[string]any) {
	tflog.SubsystemError(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

func (l *TFLogger) Trace(msg string, fields map[string]any) {
	tflog.SubsystemTrace(l.ctx, l.subsystem, msg, SanitizeFields(fields))
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a Logger writing through the given zerolog logger.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

func (z *ZerologLogger) Debug(msg string, fields map[string]any) {
	z.logger.Debug().Fields(SanitizeFields(fields)).Msg(msg)
}

func (z *ZerologLogger) Info(msg string, fields map[string]any) {
	z.logger.Info().Fields(SanitizeFields(fields)).Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, fields map[string]any) {
	z.logger.Warn().Fields(SanitizeFields(fields)).Msg(msg)
}

func (z *ZerologLogger) Error(msg string, fields map[string]any) {
	z.logger.Error().Fields(SanitizeFields(fields)).Msg(msg)
}

func (z *ZerologLogger) Trace(msg string, fields map[string]any) {
	z.logger.Trace().Fields(SanitizeFields(fields)).Msg(msg)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, map[string]any) {}
func (NopLogger) Info(string, map[string]any)  {}
func (NopLogger) Warn(string, map[string]any)  {}
func (NopLogger) Error(string, map[string]any) {}
func (NopLogger) Trace(string, map[string]any) {}

// LogOperation is a helper function to log an operation with timing.
func LogOperation(logger Logger, operation string, fields map[string]any, fn func() error) error {
	if logger == nil {
		logger = NopLogger{}
	}

	start := time.Now()

	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["operation"] = operation

	logger.Debug("Starting operation", entry)

	err := fn()

	entry["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		entry["error"] = err.Error()
		if category := GetErrorCategory(err); category != ErrorCategoryUnknown {
			entry["category"] = string(category)
		}
		logger.Error("Operation failed", entry)
	} else {
		logger.Debug("Operation completed successfully", entry)
	}

	return err
}

// LogRecordEvent logs a per-record event at trace level.
func LogRecordEvent(logger Logger, event string, r *Record) {
	if logger == nil || r == nil {
		return
	}

	logger.Trace("Record event", map[string]any{
		"event":      event,
		"dn":         r.DN(),
		"kind":       r.Kind().String(),
		"attributes": r.Len(),
		"controls":   len(r.Controls()),
	})
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":     true,
		"userpassword": true,
		"secret":       true,
		"token":        true,
		"key":          true,
		"credential":   true,
		"credentials":  true,
	}

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

// containsSensitivePattern checks if a string contains patterns that might be sensitive.
func containsSensitivePattern(s string) bool {
	patterns := []string{
		"userpassword:",
		"password=",
		"secret=",
		"token=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}
