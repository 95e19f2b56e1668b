package account

import "errors"

// Error kinds surfaced by the core. Callers map these to transport status
// codes; the core itself prescribes no wire format.
var (
	// ErrUnauthenticated means no resolvable session or identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the identity resolved but the role or ownership
	// check failed.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyInTenancy means an upgrade was requested for a user already
	// in a business, or a downgrade for a user without one.
	ErrAlreadyInTenancy = errors.New("account already in requested tenancy")

	// ErrTeammatesExist blocks a downgrade while other active members share
	// the business; removing the tenancy would orphan them.
	ErrTeammatesExist = errors.New("business still has other members")
)
