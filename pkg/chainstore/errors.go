package chainstore

import "errors"

var (
	// ErrNotFound is returned when a requested block does not exist.
	ErrNotFound = errors.New("chainstore: block not found")
	// ErrChainBroken is returned by Verify when a hash-chain invariant is
	// violated.
	ErrChainBroken = errors.New("chainstore: chain invariant violated")
	// ErrStoreUnavailable is returned when the underlying backend cannot
	// service a request (connection lost, backend down).
	ErrStoreUnavailable = errors.New("chainstore: store unavailable")
	// ErrStaleTip is returned by Append when previousHash no longer
	// matches the current tip — a concurrent writer got there first.
	ErrStaleTip = errors.New("chainstore: stale tip")
)
