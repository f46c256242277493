package procmgr

// FollowEvent is a line appended to a followed file, or an error
type FollowEvent struct {
	Line string
	Err  error
}

// FollowCleanupFunc stops a Follow and waits for it to finish
type FollowCleanupFunc func() error
