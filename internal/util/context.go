package util

import "context"

// IsCanceled reports whether ctx is already done without blocking.
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
