// Package ratelimit provides per-caller sliding-window request throttling.
// Two implementations exist: an in-process limiter for single-node and test
// deployments, and a Redis-backed limiter for multi-node deployments.
package ratelimit

import "context"

// Limiter decides whether a caller identified by key may make a request now.
// A denial is a throttling decision, never an entitlement decision.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
