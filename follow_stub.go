//go:build !linux && !darwin

package procmgr

import (
	"context"
	"errors"
)

// Follow - not supported on this platform
func Follow(ctx context.Context, path string) (<-chan FollowEvent, FollowCleanupFunc, error) {
	return nil, nil, &OpError{Op: OpFollow, Name: path, Err: errors.New("follow not supported on this platform")}
}

// FollowOutput - not supported on this platform
func (s *Supervisor) FollowOutput(ctx context.Context, pid int) (<-chan FollowEvent, FollowCleanupFunc, error) {
	return Follow(ctx, "")
}
