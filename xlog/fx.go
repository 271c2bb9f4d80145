package xlog

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxXLogger prints the fx lifecycle through an XLogger. Errors are always
// logged, the dependency graph events only at debug level.
type FxXLogger struct {
	logger XLogger
}

func hookFields(fn, caller string, fields ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("function", fn),
		zap.String("caller", caller),
	}, fields...)
}

// moduleFields skips the module field of the root module.
func moduleFields(module string, fields ...zap.Field) []zap.Field {
	if module == "" {
		return fields
	}
	return append(fields, zap.String("module", module))
}

func (l *FxXLogger) graphEvent(action string, rtypes []string, module string, err error, stack []string, fields ...zap.Field) {
	for _, rtype := range rtypes {
		l.logger.Debug("[fx] "+action, moduleFields(module, append([]zap.Field{zap.String("rtype", rtype)}, fields...)...)...)
	}
	if err != nil {
		l.logger.Error(err, "[fx] "+action+" failed", zap.Strings("stacktrace", stack))
	}
}

func (l *FxXLogger) LogEvent(event fxevent.Event) {
	if l == nil || l.logger == nil {
		return
	}

	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.logger.Debug("[fx] OnStart executing", hookFields(e.FunctionName, e.CallerName)...)
	case *fxevent.OnStartExecuted:
		fields := hookFields(e.FunctionName, e.CallerName, zap.Duration("runtime", e.Runtime))
		if e.Err != nil {
			l.logger.Error(e.Err, "[fx] OnStart failed", fields...)
			return
		}
		l.logger.Debug("[fx] OnStart executed", fields...)
	case *fxevent.OnStopExecuting:
		l.logger.Info("[fx] OnStop executing", hookFields(e.FunctionName, e.CallerName)...)
	case *fxevent.OnStopExecuted:
		fields := hookFields(e.FunctionName, e.CallerName, zap.Duration("runtime", e.Runtime))
		if e.Err != nil {
			l.logger.Error(e.Err, "[fx] OnStop failed", fields...)
			return
		}
		l.logger.Info("[fx] OnStop executed", fields...)
	case *fxevent.Supplied:
		l.graphEvent("supply", []string{e.TypeName}, e.ModuleName, e.Err, e.StackTrace)
	case *fxevent.Provided:
		l.graphEvent("provide", e.OutputTypeNames, e.ModuleName, e.Err, e.StackTrace,
			zap.String("constructor", e.ConstructorName),
			zap.Bool("private", e.Private),
		)
	case *fxevent.Replaced:
		l.graphEvent("replace", e.OutputTypeNames, e.ModuleName, e.Err, e.StackTrace)
	case *fxevent.Decorated:
		l.graphEvent("decorate", e.OutputTypeNames, e.ModuleName, e.Err, e.StackTrace,
			zap.String("decorator", e.DecoratorName),
		)
	case *fxevent.Invoking:
		l.logger.Debug("[fx] invoking", moduleFields(e.ModuleName, zap.String("function", e.FunctionName))...)
	case *fxevent.Invoked:
		if e.Err != nil {
			l.logger.Error(e.Err, "[fx] invoke failed",
				zap.String("function", e.FunctionName),
				zap.String("trace", e.Trace),
			)
		}
	case *fxevent.Stopping:
		l.logger.Info("[fx] stopping", zap.String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			l.logger.Error(e.Err, "[fx] stop failed")
		}
	case *fxevent.RollingBack:
		l.logger.Warn("[fx] start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		if e.Err != nil {
			l.logger.Error(e.Err, "[fx] roll back failed")
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error(e.Err, "[fx] start failed")
			return
		}
		l.logger.Debug("[fx] running")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			l.logger.Error(e.Err, "[fx] logger initialization failed")
			return
		}
		l.logger.Debug("[fx] logger initialized", zap.String("constructor", e.ConstructorName))
	}
}

func NewFxXLogger(logger XLogger) *FxXLogger {
	if logger == nil {
		return &FxXLogger{}
	}
	return &FxXLogger{
		logger: logger.Named("Fx"),
	}
}
