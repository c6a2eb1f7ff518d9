// Package workflow wires discovery, the stability gate, the job queue, and
// the worker pool into the conversion pipeline.
//
// One intake goroutine consumes watcher discoveries and enqueues pending
// jobs, spawning a stability check per job so a slow copy never blocks
// discovery. A fixed set of workers claims queued jobs from the store,
// runs the transcoder, and applies the retry policy to the outcome. The
// store is the only shared state; every transition goes through it.
package workflow
