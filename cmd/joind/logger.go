package main

import "go.uber.org/zap"

// zapLogger adapts *zap.SugaredLogger to join.Logger so library code stays
// free of any concrete logging dependency.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func newZapLogger(level string) (*zapLogger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: base.Sugar()}, nil
}

func (l *zapLogger) Debugf(format string, v ...any) { l.sugar.Debugf(format, v...) }
func (l *zapLogger) Infof(format string, v ...any)  { l.sugar.Infof(format, v...) }
func (l *zapLogger) Warnf(format string, v ...any)  { l.sugar.Warnf(format, v...) }
func (l *zapLogger) Errorf(format string, v ...any) { l.sugar.Errorf(format, v...) }

func (l *zapLogger) sync() { _ = l.sugar.Sync() }
