// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when an inventory lookup by name fragment did not
// match any object. The fragment is matched as a name prefix, so the error
// message renders it with a trailing glob.
type NotFoundError struct {
	// Kind is the kind of inventory object looked up, e.g. "ResourcePool".
	Kind string

	// Fragment is the name fragment the lookup tried to match.
	Fragment string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no %s found matching %q", e.Kind, e.Fragment+"*")
}

// IsNotFoundError returns true if the error or a nested error is a
// NotFoundError.
func IsNotFoundError(err error) bool {
	var notFound NotFoundError
	return errors.As(err, &notFound)
}
