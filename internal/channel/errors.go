package channel

import "errors"

// ErrAuthExpired is returned by Directory implementations when the remote
// API rejects the bearer credential. Callers invalidate the credential and
// degrade to a soft failure; the engine never propagates it further.
var ErrAuthExpired = errors.New("authorization expired")
