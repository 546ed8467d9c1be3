/*
Package worker provides the execution backends that run Analyzer calls off the caller's goroutine.

# Overview

Two interchangeable backends implement types.Backend:
- BoundedSpawner: one fresh goroutine per call, admitted through a FIFO counting semaphore
- FixedWorkerPool: a fixed set of long-lived workers draining a buffered job queue

RunInline covers the case where concurrency is disabled and the Analyzer
runs on the calling goroutine.

# Core Components

## BoundedSpawner

Trades a goroutine start per call for elasticity:
- Admission semaphore of capacity MaxConcurrent, the only back-pressure point
- Permit held for the whole execution and released on completion or panic
- Waiting for a permit honours context cancellation; a started call is never cancelled

## FixedWorkerPool

Trades a steady worker footprint for lower per-call overhead:
- Fixed number of Worker goroutines
- Buffered job queue; Submit blocks while it is full
- Each job carries a single-use result channel (see package oneshot)

## Worker

Single pool goroutine responsible for:
- Job execution and state management
- Panic recovery: the job's sender is dropped, the waiting caller fails, the worker keeps serving
- Statistics collection

# Error Handling

A panicking Analyzer never takes down the process or the pool:
- inline and spawned calls return a types.DispatchError wrapping types.ErrWorkerPanic
- pool calls observe oneshot.ErrDropped on their result channel

# Usage Examples

	backend, err := worker.NewBackend(types.Config{
		Strategy:   types.StrategyPool,
		MaxThreads: 4,
	}, worker.BackendOptions{Runner: run})
	if err != nil {
		return err
	}
	defer backend.Close()

	rx, err := backend.Submit(ctx, types.Request{Path: "file:///a.ts", Content: src})
	if err != nil {
		return err
	}
	out, err := rx.Recv(ctx)
*/
package worker
