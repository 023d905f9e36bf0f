// Package collector runs a commit collection over an organization's
// repositories in bounded, sequential batches.
package collector

import (
	"errors"
	"fmt"
)

// ErrDiscovery is matched by every DiscoveryError.
var ErrDiscovery = errors.New("repository discovery failed")

// DiscoveryError means the repositories of an organization could not be
// listed. It is the only error Collect returns.
type DiscoveryError struct {
	Organization string
	Err          error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover repositories of %s: %v", e.Organization, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

func (e *DiscoveryError) Is(target error) bool {
	return target == ErrDiscovery
}
