package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xrbtree/lib/infra"
	"github.com/benz9527/xrbtree/lib/tree"
	"github.com/benz9527/xrbtree/observability"
	"github.com/benz9527/xrbtree/xlog"
)

type demo struct {
	cfg    *Config
	tree   tree.RBTree[int, int]
	logger xlog.XLogger
}

func newLogger(cfg *Config, w io.Writer) xlog.XLogger {
	enc := xlog.JSON
	if cfg.Log.Encoder == "text" {
		enc = xlog.PlainText
	}
	return xlog.NewXLogger(
		xlog.WithXLoggerLevel(xlog.LogLevel(cfg.Log.Level)),
		xlog.WithXLoggerEncoder(enc),
		xlog.WithXLoggerWriter(w),
	)
}

func newDemo(cfg *Config, logger xlog.XLogger, exporter *observability.MetricsExporter) *demo {
	logger = logger.Named("rbdemo")
	opts := []tree.RBTreeOpt[int, int]{
		tree.WithRBTreeLogger[int, int](logger),
		tree.WithRBTreeStats[int, int]("rbdemo", exporter.Provider),
		tree.WithRBTreeCapacity[int, int](cfg.Tree.Capacity),
	}
	if cfg.Tree.BorrowPred {
		opts = append(opts, tree.WithRBTreeRemoveBorrowPred[int, int]())
	}
	return &demo{
		cfg:    cfg,
		tree:   tree.NewRBTree[int, int](opts...),
		logger: logger,
	}
}

// seed skips the present keys, like the insert of a linked node reports
// "exists" and leaves the tree unchanged.
func (d *demo) seed() error {
	for _, key := range d.cfg.Tree.Keys {
		_, err := d.tree.Insert(key, d.cfg.Tree.Payload)
		if errors.Is(err, tree.ErrDuplicateKey) {
			d.logger.Warn("[rbdemo] seed key exists", zap.Int("key", key))
			continue
		} else if err != nil {
			return infra.WrapErrorStackWithMessage(err, "[rbdemo] seed")
		}
	}
	d.logger.Info("[rbdemo] seeded", zap.Int64("len", d.tree.Len()))
	return nil
}

func (d *demo) forward() (keys, vals []int) {
	for node := d.tree.First(); node != nil; node = d.tree.Successor(node) {
		keys, vals = append(keys, node.Key()), append(vals, node.Val())
	}
	d.logger.Info("[rbdemo] traverse", zap.String("order", "forward"), zap.Ints("keys", keys), zap.Ints("vals", vals))
	return keys, vals
}

func (d *demo) backward() (keys, vals []int) {
	for node := d.tree.Last(); node != nil; node = d.tree.Predecessor(node) {
		keys, vals = append(keys, node.Key()), append(vals, node.Val())
	}
	d.logger.Info("[rbdemo] traverse", zap.String("order", "backward"), zap.Ints("keys", keys), zap.Ints("vals", vals))
	return keys, vals
}

func (d *demo) replace() error {
	key := d.cfg.Tree.ReplaceKey
	node, err := d.tree.Search(key)
	if err != nil {
		return infra.WrapErrorStackWithMessage(err, "[rbdemo] replace")
	}
	old := node.Val()
	if node, err = d.tree.Replace(node, key, d.cfg.Tree.ReplacePayload); err != nil {
		return infra.WrapErrorStackWithMessage(err, "[rbdemo] replace")
	}
	d.logger.Info("[rbdemo] replaced", zap.Int("key", key), zap.Int("old", old), zap.Int("new", node.Val()))
	return nil
}

// erase removes the entries in ascending order. The next handle is taken
// before its predecessor is removed.
func (d *demo) erase() []int {
	erased := make([]int, 0, d.tree.Len())
	for node := d.tree.First(); node != nil; {
		next := d.tree.Successor(node)
		removed, err := d.tree.RemoveNode(node)
		if err != nil {
			d.logger.Error(err, "[rbdemo] erase", zap.Int("key", node.Key()))
			break
		}
		erased = append(erased, removed.Key())
		node = next
	}
	d.logger.Info("[rbdemo] erased", zap.Ints("keys", erased), zap.Int64("len", d.tree.Len()))
	return erased
}

func (d *demo) run() error {
	if err := d.seed(); err != nil {
		return err
	}
	d.forward()
	if err := d.replace(); err != nil {
		return err
	}
	d.backward()
	return infra.WrapErrorStack(tree.Validate[int, int](d.tree))
}

func newMetricsServer(cfg *Config, exporter *observability.MetricsExporter) *http.Server {
	if exporter.Handler == nil || cfg.Metrics.Listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler)
	return &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func registerHooks(
	lc fx.Lifecycle,
	d *demo,
	exporter *observability.MetricsExporter,
	logger xlog.XLogger,
) {
	var (
		srv   = newMetricsServer(d.cfg, exporter)
		stats *observability.AppStats
	)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			if stats, err = observability.NewAppStats("rbdemo", exporter.Provider); err != nil {
				return err
			}
			if err = d.run(); err != nil {
				// The OnStop of a failed hook is never called.
				logger.ErrorStack(err, "[rbdemo] start failed")
				return multierr.Combine(err, stats.Close(), exporter.Shutdown(ctx))
			}
			if srv == nil {
				return nil
			}
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				d.erase()
				return multierr.Combine(err, stats.Close(), exporter.Shutdown(ctx))
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(err, "[rbdemo] metrics server")
				}
			}()
			logger.Info("[rbdemo] metrics served", zap.String("addr", ln.Addr().String()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var merr error
			if srv != nil {
				merr = multierr.Append(merr, srv.Shutdown(ctx))
			}
			d.erase()
			merr = multierr.Append(merr, stats.Close())
			merr = multierr.Append(merr, exporter.Shutdown(ctx))
			_ = logger.Sync()
			return merr
		},
	})
}

func newApp(cfg *Config, w io.Writer, opts ...fx.Option) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func() xlog.XLogger {
				return newLogger(cfg, w)
			},
			func() (*observability.MetricsExporter, error) {
				return observability.NewMetricsExporter(
					observability.MetricsExporterType(cfg.Metrics.Exporter),
					w,
					cfg.Metrics.Interval,
				)
			},
			newDemo,
		),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Invoke(registerHooks),
		fx.Options(opts...),
	)
}

// run starts the app, waits for ctx or a signal if holding, then stops it.
func run(ctx context.Context, cfg *Config, w io.Writer, opts ...fx.Option) error {
	app := newApp(cfg, w, opts...)
	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	if cfg.Hold {
		select {
		case <-app.Done():
		case <-ctx.Done():
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(stopCtx)
}
