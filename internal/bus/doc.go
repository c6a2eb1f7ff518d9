// Package bus publishes job lifecycle events to NATS for downstream
// automation. Publishing is best-effort and optional: with no broker
// configured the publisher is a no-op, and a failed publish never affects
// the job it describes.
package bus
