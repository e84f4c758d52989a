// analyzer.go: fans trace batches out to a set of estimators
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"context"
	"time"
)

// RequestConsumer is anything that can ingest trace batches. All estimators
// in this package implement it.
type RequestConsumer interface {
	AddRequests(batch []Request) error
}

// AnalysisStats summarizes one analyzer run.
type AnalysisStats struct {
	Requests uint64
	Batches  uint64
	Duration time.Duration

	// Failed maps consumer index to the fatal error that stopped it.
	// Healthy runs leave it empty.
	Failed map[int]error
}

// Analyzer drives a RequestReader and delivers every batch to each
// consumer in turn. Estimators are independent; one failing does not stop
// the others. Cancellation is cooperative at batch boundaries.
type Analyzer struct {
	cfg       Config
	consumers []RequestConsumer
}

// NewAnalyzer creates a driver over the given consumers.
func NewAnalyzer(cfg Config, consumers ...RequestConsumer) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg, consumers: consumers}, nil
}

// Run consumes the reader until end of trace, a reader error, or context
// cancellation. Reader errors abort the run (a truncated trace invalidates
// it); consumer errors are recorded per consumer and the stream continues
// for the rest.
func (a *Analyzer) Run(ctx context.Context, reader RequestReader, batchSize int) (AnalysisStats, error) {
	if batchSize <= 0 {
		batchSize = 1 << 16
	}
	stats := AnalysisStats{Failed: make(map[int]error)}
	start := a.cfg.TimeProvider.Now()

	for {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Duration(a.cfg.TimeProvider.Now() - start)
			return stats, err
		}
		batch, err := reader.NextBatch(ctx, batchSize)
		if err != nil {
			stats.Duration = time.Duration(a.cfg.TimeProvider.Now() - start)
			return stats, err
		}
		if len(batch) == 0 {
			break
		}

		batchStart := a.cfg.TimeProvider.Now()
		for i, consumer := range a.consumers {
			if _, down := stats.Failed[i]; down {
				continue
			}
			if err := consumer.AddRequests(batch); err != nil {
				stats.Failed[i] = err
				a.cfg.Logger.Error("estimator failed, continuing without it",
					"consumer", i, "error", err)
			}
		}
		stats.Requests += uint64(len(batch))
		stats.Batches++
		a.cfg.MetricsCollector.RecordBatch(len(batch), a.cfg.TimeProvider.Now()-batchStart)
	}

	stats.Duration = time.Duration(a.cfg.TimeProvider.Now() - start)
	return stats, nil
}
