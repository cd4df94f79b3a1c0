package types

import "errors"

// ErrSecretNotFound is returned by secret providers when no provider
// holds the named secret. Callers treat optional secrets (webhook URLs
// and the like) as absent on this error.
var ErrSecretNotFound = errors.New("secret not found")

// ErrRunNotFound is returned by run stores for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")
