package log

import (
	"fmt"
	"gopkg.in/natefinch/lumberjack.v2"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

const RequestIDKey = "request_id"

type Fields = logrus.Fields

func NewLogger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(levelFromEnv())

		logger.SetFormatter(&formatter.Formatter{
			NoColors:        os.Getenv("LOG_NO_COLORS") == "true",
			TimestampFormat: "02 Jan 06 - 15:04:05",
			HideKeys:        false,
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				funcName := s[len(s)-1]
				return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
			},
		})

		writers := []io.Writer{os.Stderr}

		if os.Getenv("APP_ENV") != "test" {
			logDir := os.Getenv("LOG_DIR")
			if logDir == "" {
				logDir = "./storage/logs"
			}
			fileWriter := &lumberjack.Logger{
				Filename:   filepath.Join(logDir, fmt.Sprintf("vsl-%s.log", time.Now().Format("2006-01-02"))),
				LocalTime:  true,
				Compress:   true,
				MaxSize:    100,
				MaxAge:     7,
				MaxBackups: 3,
			}
			writers = append(writers, fileWriter)
		}

		logger.SetOutput(io.MultiWriter(writers...))
		logger.SetReportCaller(true)
	})

	return logger
}

func levelFromEnv() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

// ErrorWithTraceID logs msg on logger and returns the trace id attached to
// it, reusing the request id when the caller has one. A nil logger falls back
// to the shared one.
func ErrorWithTraceID(logger *logrus.Logger, fields Fields, msg string) string {
	if logger == nil {
		logger = NewLogger()
	}
	if fields == nil {
		fields = Fields{}
	}

	var traceID string
	if reqID, ok := fields[RequestIDKey].(string); ok && reqID != "" && reqID != "unknown" {
		traceID = reqID
	} else {
		id, err := uuid.NewRandom()
		if err != nil {
			logger.WithField("error", err.Error()).Error("[log.ErrorWithTraceID] failed to generate trace ID")
			traceID = "unknown"
		} else {
			traceID = id.String()
		}
	}

	fields["trace_id"] = traceID
	logger.WithFields(fields).Error(msg)

	return traceID
}
