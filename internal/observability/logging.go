package observability

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging with request/conversation correlation
// and redaction of sensitive data, built on log/slog.
type Logger struct {
	logger   *slog.Logger
	config   LogConfig
	redactor *Redactor
}

// LogConfig configures the logging behavior.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string

	// Format specifies output format: "json" or "text". JSON is recommended
	// for production, text for local development.
	Format string

	// Output is the writer for log output (defaults to os.Stdout).
	Output io.Writer

	// AddSource includes file and line number in log records.
	AddSource bool
}

// ContextKey is the type for context keys used in logging.
type ContextKey string

const (
	RequestIDKey      ContextKey = "request_id"
	ConversationIDKey ContextKey = "conversation_id"
	UserIDKey         ContextKey = "user_id"
	AssistantIDKey    ContextKey = "assistant_id"
)

// NewLogger creates a structured logger. An empty Level defaults to "info",
// an empty Format defaults to "json", and a nil Output defaults to
// os.Stdout.
func NewLogger(config LogConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Level == "" {
		config.Level = "info"
	}
	if config.Format == "" {
		config.Format = "json"
	}

	opts := &slog.HandlerOptions{
		Level:     LogLevelFromString(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		logger:   slog.New(handler),
		config:   config,
		redactor: NewRedactor(),
	}
}

// WithContext returns a logger that includes request_id, conversation_id,
// user_id, and assistant_id from ctx, when present, in every record.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := make([]any, 0, 8)
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		attrs = append(attrs, "request_id", v)
	}
	if v, ok := ctx.Value(ConversationIDKey).(string); ok && v != "" {
		attrs = append(attrs, "conversation_id", v)
	}
	if v, ok := ctx.Value(UserIDKey).(string); ok && v != "" {
		attrs = append(attrs, "user_id", v)
	}
	if v, ok := ctx.Value(AssistantIDKey).(string); ok && v != "" {
		attrs = append(attrs, "assistant_id", v)
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(attrs...), config: l.config, redactor: l.redactor}
}

// WithFields returns a logger that includes the given key-value pairs in
// every record.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), config: l.config, redactor: l.redactor}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) { l.log(ctx, slog.LevelDebug, msg, args...) }
func (l *Logger) Info(ctx context.Context, msg string, args ...any)  { l.log(ctx, slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(ctx context.Context, msg string, args ...any)  { l.log(ctx, slog.LevelWarn, msg, args...) }
func (l *Logger) Error(ctx context.Context, msg string, args ...any) { l.log(ctx, slog.LevelError, msg, args...) }

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	msg, _ = l.redactor.RedactString(msg)

	redactedArgs := make([]any, len(args))
	for i, arg := range args {
		redactedArgs[i] = l.redactArg(arg)
	}

	attrs := make([]any, 0, len(redactedArgs)+8)
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		attrs = append(attrs, "request_id", v)
	}
	if v, ok := ctx.Value(ConversationIDKey).(string); ok && v != "" {
		attrs = append(attrs, "conversation_id", v)
	}
	if v, ok := ctx.Value(UserIDKey).(string); ok && v != "" {
		attrs = append(attrs, "user_id", v)
	}
	if v, ok := ctx.Value(AssistantIDKey).(string); ok && v != "" {
		attrs = append(attrs, "assistant_id", v)
	}
	attrs = append(attrs, redactedArgs...)

	l.logger.Log(ctx, level, msg, attrs...)
}

func (l *Logger) redactArg(v any) any {
	switch val := v.(type) {
	case string:
		redacted, _ := l.redactor.RedactString(val)
		return redacted
	case error:
		redacted, _ := l.redactor.RedactString(val.Error())
		return redacted
	case []byte:
		redacted, _ := l.redactor.RedactString(string(val))
		return redacted
	case map[string]any:
		return l.redactor.RedactValue(val)
	default:
		if b, err := json.Marshal(v); err == nil {
			redacted, _ := l.redactor.RedactString(string(b))
			return redacted
		}
		return v
	}
}

// AddRequestID adds a request ID to the context.
func AddRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// AddConversationID adds a conversation ID to the context.
func AddConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ConversationIDKey, conversationID)
}

// AddUserID adds a user ID to the context.
func AddUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// AddAssistantID adds an assistant ID to the context.
func AddAssistantID(ctx context.Context, assistantID string) context.Context {
	return context.WithValue(ctx, AssistantIDKey, assistantID)
}

// GetRequestID retrieves the request ID from the context, if any.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// GetConversationID retrieves the conversation ID from the context, if any.
func GetConversationID(ctx context.Context) string {
	v, _ := ctx.Value(ConversationIDKey).(string)
	return v
}

// LogLevelFromString converts a string to a slog.Level, defaulting to
// LevelInfo for unrecognized input.
func LogLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
