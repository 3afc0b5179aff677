// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"context"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
)

// FromContextOrDefault returns a Logger from ctx. If no Logger is found, this
// returns the global klog logger so we at least don't accidentally discard
// logs. Prefer using this over logr.FromContextOrDiscard().
func FromContextOrDefault(ctx context.Context) logr.Logger {
	if logger, err := logr.FromContext(ctx); err == nil {
		return logger
	}
	return klog.Background().WithName("DEFAULT")
}
