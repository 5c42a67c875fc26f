package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log *zap.SugaredLogger

var rotator *lumberjack.Logger

// FileConfig enables a rotated log file alongside console output.
type FileConfig struct {
	Path       string // directory; empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func Init(isDev bool) {
	Log = build(isDev, nil).Sugar()
}

// InitWithFile is Init plus a lumberjack-rotated file in fc.Path.
func InitWithFile(isDev bool, fc FileConfig) error {
	if fc.Path == "" {
		Init(isDev)
		return nil
	}

	if err := os.MkdirAll(fc.Path, 0755); err != nil {
		return err
	}

	r := &lumberjack.Logger{
		Filename:   filepath.Join(fc.Path, "fusionn-seer.log"),
		MaxSize:    orDefault(fc.MaxSizeMB, 10),
		MaxBackups: orDefault(fc.MaxBackups, 5),
		MaxAge:     orDefault(fc.MaxAgeDays, 30),
		Compress:   fc.Compress,
		LocalTime:  true,
	}

	// Files always get JSON so they stay machine readable
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(r), zap.DebugLevel)

	Log = build(isDev, fileCore).Sugar()
	rotator = r
	return nil
}

func build(isDev bool, extra zapcore.Core) *zap.Logger {
	var config zap.Config

	if isDev {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	var opts []zap.Option
	if extra != nil {
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, extra)
		}))
	}

	logger, err := config.Build(opts...)
	if err != nil {
		panic(err)
	}
	return logger
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
	if rotator != nil {
		_ = rotator.Close()
	}
}

// Convenience methods
func Info(args ...interface{})                    { Log.Info(args...) }
func Infof(template string, args ...interface{})  { Log.Infof(template, args...) }
func Error(args ...interface{})                   { Log.Error(args...) }
func Errorf(template string, args ...interface{}) { Log.Errorf(template, args...) }
func Debug(args ...interface{})                   { Log.Debug(args...) }
func Debugf(template string, args ...interface{}) { Log.Debugf(template, args...) }
func Warn(args ...interface{})                    { Log.Warn(args...) }
func Warnf(template string, args ...interface{})  { Log.Warnf(template, args...) }
func Fatal(args ...interface{})                   { Log.Fatal(args...); os.Exit(1) }
func Fatalf(template string, args ...interface{}) { Log.Fatalf(template, args...); os.Exit(1) }
