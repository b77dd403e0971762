package ratelimit

// RateLimiter is an abstraction for bounding concurrent node executions.
type RateLimiter interface {
	// Acquire waits until a slot is available for the node.
	Acquire()
	// Release tells the node is done.
	Release()
}
