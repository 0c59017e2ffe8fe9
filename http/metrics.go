package http

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const name = "github.com/freekieb7/staticd/http"

var (
	tracer = otel.Tracer(name)
	meter  = otel.Meter(name)

	instruments struct {
		connections  metric.Int64Counter
		responses    metric.Int64Counter
		bytesWritten metric.Int64Counter
		connDuration metric.Float64Histogram
		queueWait    metric.Float64Histogram
		faults       metric.Int64Counter
	}
)

func init() {
	var err error

	instruments.connections, err = meter.Int64Counter("staticd.connections",
		metric.WithDescription("Connections taken off the queue by a worker"),
		metric.WithUnit("{connection}"))
	if err != nil {
		panic(err)
	}

	instruments.responses, err = meter.Int64Counter("staticd.responses",
		metric.WithDescription("Final responses sent, by status code"),
		metric.WithUnit("{response}"))
	if err != nil {
		panic(err)
	}

	instruments.bytesWritten, err = meter.Int64Counter("staticd.response.bytes",
		metric.WithDescription("Bytes written to clients, heads included"),
		metric.WithUnit("By"))
	if err != nil {
		panic(err)
	}

	instruments.connDuration, err = meter.Float64Histogram("staticd.connection.duration",
		metric.WithDescription("Time from dequeue to connection close"),
		metric.WithUnit("s"))
	if err != nil {
		panic(err)
	}

	instruments.queueWait, err = meter.Float64Histogram("staticd.queue.wait",
		metric.WithDescription("Time a connection spent in the queue"),
		metric.WithUnit("s"))
	if err != nil {
		panic(err)
	}

	instruments.faults, err = meter.Int64Counter("staticd.faults",
		metric.WithDescription("Unexpected faults contained while serving a connection"),
		metric.WithUnit("{fault}"))
	if err != nil {
		panic(err)
	}
}
