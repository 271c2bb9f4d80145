package tree

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	RBTreeStatsName = "xrbtree/rbtree"
)

var (
	rotationLeftAttrs  = metric.WithAttributeSet(attribute.NewSet(attribute.String("rbtree.rotation.direction", Left.String())))
	rotationRightAttrs = metric.WithAttributeSet(attribute.NewSet(attribute.String("rbtree.rotation.direction", Right.String())))
)

// All methods are nil safe, a tree without stats holds a nil pointer.
type rbTreeStats struct {
	size            metric.Int64UpDownCounter
	insertCount     metric.Int64Counter
	removeCount     metric.Int64Counter
	replaceCount    metric.Int64Counter
	rejectedCount   metric.Int64Counter
	rotationCount   metric.Int64Counter
	releasedCount   metric.Int64Counter
	fixupIterations metric.Int64Histogram
}

func (stats *rbTreeStats) IncreaseInsertCount() {
	if stats == nil {
		return
	}
	stats.insertCount.Add(context.Background(), 1)
	stats.size.Add(context.Background(), 1)
}

func (stats *rbTreeStats) IncreaseRemoveCount() {
	if stats == nil {
		return
	}
	stats.removeCount.Add(context.Background(), 1)
	stats.size.Add(context.Background(), -1)
}

func (stats *rbTreeStats) IncreaseReplaceCount() {
	if stats == nil {
		return
	}
	stats.replaceCount.Add(context.Background(), 1)
}

func (stats *rbTreeStats) IncreaseRejectedCount(op string) {
	if stats == nil {
		return
	}
	as := attribute.NewSet(
		attribute.String("rbtree.op", op),
	)
	stats.rejectedCount.Add(context.Background(), 1, metric.WithAttributeSet(as))
}

func (stats *rbTreeStats) IncreaseRotationCount(dir RBDirection) {
	if stats == nil {
		return
	}
	if dir == Left {
		stats.rotationCount.Add(context.Background(), 1, rotationLeftAttrs)
		return
	}
	stats.rotationCount.Add(context.Background(), 1, rotationRightAttrs)
}

func (stats *rbTreeStats) RecordFixup(op string, iterations int) {
	if stats == nil {
		return
	}
	as := attribute.NewSet(
		attribute.String("rbtree.op", op),
	)
	stats.fixupIterations.Record(context.Background(), int64(iterations), metric.WithAttributeSet(as))
}

func (stats *rbTreeStats) RecordRelease(nodes int64) {
	if stats == nil {
		return
	}
	stats.releasedCount.Add(context.Background(), nodes)
	stats.size.Add(context.Background(), -nodes)
}

func newRBTreeStats(name string, mp ...metric.MeterProvider) *rbTreeStats {
	meterName := RBTreeStatsName
	if len(name) > 0 {
		meterName = fmt.Sprintf("%s/%s", RBTreeStatsName, name)
	}
	var meter metric.Meter
	if len(mp) > 0 && mp[0] != nil {
		meter = mp[0].Meter(meterName)
	} else {
		meter = otel.Meter(meterName)
	}
	return &rbTreeStats{
		size: lo.Must[metric.Int64UpDownCounter](meter.Int64UpDownCounter(
			"rbtree.size",
			metric.WithDescription("The number of nodes in the rbtree."),
		)),
		insertCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.insert.count",
			metric.WithDescription("The number of inserted nodes."),
		)),
		removeCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.remove.count",
			metric.WithDescription("The number of removed nodes."),
		)),
		replaceCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.replace.count",
			metric.WithDescription("The number of replaced nodes."),
		)),
		rejectedCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.rejected.count",
			metric.WithDescription("The number of rejected operations, by operation."),
		)),
		rotationCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.rotation.count",
			metric.WithDescription("The number of rotations, by direction."),
		)),
		releasedCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"rbtree.released.count",
			metric.WithDescription("The number of nodes released by teardown."),
		)),
		fixupIterations: lo.Must[metric.Int64Histogram](meter.Int64Histogram(
			"rbtree.fixup.iterations",
			metric.WithDescription("The loop iterations of a rebalance after insert or remove."),
			metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32),
		)),
	}
}
