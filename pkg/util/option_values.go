// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"fmt"

	vimtypes "github.com/vmware/govmomi/vim25/types"
)

// OptionValues simplifies manipulation of properties that are arrays of
// vimtypes.BaseOptionValue, such as a VM's ExtraConfig.
type OptionValues []vimtypes.BaseOptionValue

// OptionValuesFromMap returns a new OptionValues object from the provided map.
func OptionValuesFromMap[T any](in map[string]T) OptionValues {
	if len(in) == 0 {
		return nil
	}
	var (
		i   int
		out = make(OptionValues, len(in))
	)
	for k, v := range in {
		out[i] = &vimtypes.OptionValue{Key: k, Value: v}
		i++
	}
	return out
}

// Get returns the value if exists, otherwise nil is returned. The second
// return value is a flag indicating whether the value exists or nil was the
// actual value.
func (ov OptionValues) Get(key string) (any, bool) {
	for i := range ov {
		if optVal := ov[i].GetOptionValue(); optVal != nil {
			if optVal.Key == key {
				return optVal.Value, true
			}
		}
	}
	return nil, false
}

// GetString returns the value as a string if the value exists.
func (ov OptionValues) GetString(key string) (string, bool) {
	val, ok := ov.Get(key)
	if !ok {
		return "", false
	}
	return optionValueAsString(val), true
}

// HasAnyKey returns true if any of the provided keys exist in the list.
func (ov OptionValues) HasAnyKey(keys ...string) bool {
	for _, key := range keys {
		if _, ok := ov.Get(key); ok {
			return true
		}
	}
	return false
}

// Append adds the provided item(s) to the end of the list, preserving order.
// Unlike OptionValuesFromMap, the result is deterministic with respect to the
// input order.
func (ov OptionValues) Append(in ...vimtypes.BaseOptionValue) OptionValues {
	out := make(OptionValues, 0, len(ov)+len(in))
	out = append(out, ov...)
	return append(out, in...)
}

// Map returns the list of option values as a map.
func (ov OptionValues) Map() map[string]any {
	if len(ov) == 0 {
		return nil
	}
	out := map[string]any{}
	for i := range ov {
		if optVal := ov[i].GetOptionValue(); optVal != nil {
			out[optVal.Key] = optVal.Value
		}
	}
	return out
}

// StringMap returns the list of option values as a map where the values are
// strings.
func (ov OptionValues) StringMap() map[string]string {
	if len(ov) == 0 {
		return nil
	}
	out := map[string]string{}
	for i := range ov {
		if optVal := ov[i].GetOptionValue(); optVal != nil {
			out[optVal.Key] = optionValueAsString(optVal.Value)
		}
	}
	return out
}

func optionValueAsString(val any) string {
	switch tval := val.(type) {
	case string:
		return tval
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", tval)
	}
}
