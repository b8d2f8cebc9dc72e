package logger

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CorrelationIDHeader is the request/response header carrying the request id.
const CorrelationIDHeader = "X-Correlation-ID"

const correlationKey = "correlation_id"

type ctxKey struct{}

// Init builds the process logger from LOG_LEVEL, LOG_FORMAT and LOG_FILE and
// installs it as the zap global.
func Init() (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(getEnv("LOG_FORMAT", "json"), "console") {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, setupWriter(), level)
	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	zap.ReplaceGlobals(l)

	return l, nil
}

// setupWriter returns stdout, teed into a rotating file when LOG_FILE is set.
func setupWriter() zapcore.WriteSyncer {
	stdout := zapcore.Lock(os.Stdout)

	path := os.Getenv("LOG_FILE")
	if path == "" {
		return stdout
	}

	rotating := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    getInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: getInt("LOG_MAX_BACKUPS", 5),
		MaxAge:     getInt("LOG_MAX_AGE_DAYS", 30),
		Compress:   true,
	}

	return zapcore.NewMultiWriteSyncer(stdout, zapcore.AddSync(rotating))
}

// Middleware assigns a correlation id to every request and logs its outcome.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(correlationKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Request = c.Request.WithContext(WithCorrelationID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("correlation_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			zap.L().Error("http request", fields...)
		case c.Writer.Status() >= 400:
			zap.L().Warn("http request", fields...)
		default:
			zap.L().Info("http request", fields...)
		}
	}
}

// CorrelationID returns the id assigned by Middleware.
func CorrelationID(c *gin.Context) string {
	return c.GetString(correlationKey)
}

// WithCorrelationID stores id on ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the global logger annotated with the context's
// correlation id, if any.
func FromContext(ctx context.Context) *zap.Logger {
	l := zap.L()
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		l = l.With(zap.String("correlation_id", id))
	}
	return l
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
