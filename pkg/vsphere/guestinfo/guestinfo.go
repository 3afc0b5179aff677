// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

// Package guestinfo reconciles cloud-init style guestinfo keys in a VM's
// ExtraConfig.
package guestinfo

import (
	"context"
	"strings"

	"github.com/vmware/govmomi/object"
	vimtypes "github.com/vmware/govmomi/vim25/types"

	pkgutil "github.com/rdavisunr/set-vm-guestinfo/pkg/util"
)

const (
	MetadataKey         = "guestinfo.metadata"
	MetadataEncodingKey = "guestinfo.metadata.encoding"
	UserdataKey         = "guestinfo.userdata"
	UserdataEncodingKey = "guestinfo.userdata.encoding"

	// GzipBase64Encoding labels payloads that are gzipped then base64 encoded.
	// The caller performs the encoding; this program only passes the encoded
	// text through.
	GzipBase64Encoding = "gzip+base64"
)

// GuestInfo holds the caller-supplied, already-encoded cloud-init payloads
// written to a VM's ExtraConfig.
type GuestInfo struct {
	EncodedMetadata string
	EncodedUserdata string
}

// Keys returns the ExtraConfig keys owned by GuestInfo, in the order they are
// written.
func Keys() []string {
	return []string{
		MetadataKey,
		MetadataEncodingKey,
		UserdataKey,
		UserdataEncodingKey,
	}
}

// Pairs returns the option values for the desired guestinfo state. The order
// is fixed so reconfigure specs are deterministic.
func (gi GuestInfo) Pairs() pkgutil.OptionValues {
	return pkgutil.OptionValues{
		&vimtypes.OptionValue{Key: MetadataKey, Value: gi.EncodedMetadata},
		&vimtypes.OptionValue{Key: MetadataEncodingKey, Value: GzipBase64Encoding},
		&vimtypes.OptionValue{Key: UserdataKey, Value: gi.EncodedUserdata},
		&vimtypes.OptionValue{Key: UserdataEncodingKey, Value: GzipBase64Encoding},
	}
}

// GetExtraConfigGuestInfo returns the VM's current guestinfo.* keys from its
// ExtraConfig as a map of strings.
func GetExtraConfigGuestInfo(
	ctx context.Context,
	vm *object.VirtualMachine) (map[string]string, error) {

	extraConfig, err := getExtraConfig(ctx, vm)
	if err != nil {
		return nil, err
	}

	giMap := make(map[string]string)

	for _, option := range extraConfig {
		if val := option.GetOptionValue(); val != nil {
			if strings.HasPrefix(val.Key, "guestinfo.") {
				if str, ok := val.Value.(string); ok {
					giMap[val.Key] = str
				}
			}
		}
	}

	return giMap, nil
}
