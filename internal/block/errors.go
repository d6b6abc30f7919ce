package block

import "errors"

var (
	// ErrPermission: mutating the hosts file needs elevated privileges.
	// No partial mutation is left behind when this is returned.
	ErrPermission = errors.New("insufficient privileges to modify the hosts file (try sudo)")

	// ErrNotBlocked: removal of a domain that is not in the list. Surfaced
	// as a warning no-op by callers, not as a fatal condition.
	ErrNotBlocked = errors.New("domain is not in the block list")

	// ErrCorruptState: the persisted block state does not parse. The
	// scheduler fails closed: no further mutation until the operator
	// resolves it (or deletes the state file).
	ErrCorruptState = errors.New("block state file is corrupt; refusing to modify it")
)
