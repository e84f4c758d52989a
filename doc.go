// Package xanthos provides cache-sizing analytics over access traces with
// per-object expiry: Working-Set Size (WSS) estimation and Miss-Ratio
// Curve (MRC) generation, each in an exact variant and several
// approximate, TTL-aware variants.
//
// # Overview
//
// Xanthos consumes a stream of immutable access records (timestamp, hashed
// key, value size, absolute eviction time) and maintains online statistics
// under TTL semantics: an object stops contributing to WSS and MRC once
// its eviction timestamp passes. The package is a library of estimation
// engines; it is not a cache, holds no user data, and leaves trace file
// decoding, plotting and orchestration to its callers.
//
// # Estimators
//
//   - ExactWSS / SketchWSS: working-set size, exact map or a geometric
//     bank of HyperLogLog sketches by power-of-two block class.
//   - Olken: exact miss-ratio curves from full stack-distance tracking
//     over an order-statistic tree.
//   - ShardsFixedRate: deterministic spatial sampling at a fixed rate R
//     with 1/R scaling.
//   - ShardsFixedSize: bounded sample with dynamic threshold adaptation
//     and retroactive histogram rescaling.
//   - CounterStacks: a bounded bank of TTL-aware HyperLogLogs whose
//     column deltas approximate the full curve in sublinear memory.
//
// All MRC estimators share one capability set:
//
//	est.AddRequests(batch)
//	curve, err := est.MRCFixedBlock()   // or MRCRunningAvg()
//	curve.WriteCSV(w)
//
// # Quick Start
//
//	cfg := xanthos.Config{
//		Precision: 12,
//		TTLAware:  true,
//	}
//	if err := cfg.Validate(); err != nil { // fills the block range DecodeRequests clamps to
//		log.Fatal(err)
//	}
//
//	olken, err := xanthos.NewOlken(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	reqs, err := xanthos.DecodeRequests(traceBytes, &cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := olken.AddRequests(reqs); err != nil {
//		log.Fatal(err)
//	}
//
//	mrc, _ := olken.MRCFixedBlock()
//	_ = mrc.WriteCSV(os.Stdout)
//
// Several estimators can share one trace pass through the Analyzer:
//
//	analyzer, _ := xanthos.NewAnalyzer(cfg, olken, shards, counterstacks)
//	stats, err := analyzer.Run(ctx, reader, 1<<16)
//
// # TTL-aware HyperLogLog
//
// HLLTTL extends HyperLogLog with one absolute expiry per (register, rank)
// cell, so cardinality can be queried "as of" any trace time and only
// counts live objects. Sketches start sparse and promote to the dense
// matrix on capacity overflow. Sketches are mergeable (per-cell expiry
// maxima) with a merge sequence number guarding fan-out deliveries, and
// serialize to fixed-size or pruned dynamic encodings.
//
// # Concurrency Model
//
// Every estimator is single-threaded on its hot path; estimators are
// independent and embarrassingly parallel per trace. CounterStacks can fan
// its per-trigger counter merges across a bounded worker pool
// (Config.Workers); merges touch disjoint counters. Cancellation is
// cooperative at batch boundaries via context.Context.
//
// # Error Handling
//
// Xanthos uses structured errors with XANTHOS_* codes. Contract
// violations (an impossible zero stack distance, diverged indexes) mark
// the estimator failed: the triggering call and every later one return
// the fatal error, because the run's output would be invalid. Capacity
// overruns degrade instead: exact calculators shed or drop, the
// fixed-size sampler tightens its threshold, CounterStacks prunes.
//
//	if err := est.AddRequests(batch); err != nil {
//		if xanthos.IsContractViolation(err) {
//			// discard this run's output
//		}
//	}
//
// # Configuration
//
//	cfg := xanthos.Config{
//		MaxCacheBytes:    2 * datasize.TB,
//		BucketWidthBytes: 32 * datasize.MB,
//		FixedBlockBytes:  4 * datasize.KB,
//		Precision:        12,
//		SamplingRate:     0.01,
//		SampleCap:        8192,
//		CounterCapacity:  64,
//		Fidelity:         xanthos.HiFi,
//		TTLAware:         true,
//	}
//
// Configuration is immutable after construction and passed explicitly; the
// package keeps no global state. See HotConfig for argus-backed file
// watching of the analysis parameters.
//
// # License
//
// See LICENSE file in the repository.
//
// Contributions welcome at https://github.com/agilira/xanthos
package xanthos
