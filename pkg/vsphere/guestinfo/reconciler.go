// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

package guestinfo

import (
	"context"
	"fmt"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/mo"
	vimtypes "github.com/vmware/govmomi/vim25/types"

	pkglog "github.com/rdavisunr/set-vm-guestinfo/pkg/log"
	pkgutil "github.com/rdavisunr/set-vm-guestinfo/pkg/util"
)

// Reconciler makes a VM's ExtraConfig reflect a desired GuestInfo in two
// sequential reconfigure tasks: first any existing guestinfo keys are removed
// by rewriting their values to empty string, then the desired pairs are
// appended. The remove task must complete before the set task is issued: the
// platform does not guarantee ordering of duplicate keys within a single
// ExtraConfig list, so stale empty-string placeholders must never coexist
// with new values in one spec.
//
// The two phases are not transactional. A concurrent external mutation
// between them, or a remove task that fails after partially applying, can
// leave placeholder keys behind.
type Reconciler struct {
	vm *object.VirtualMachine
}

// Result reports what the reconcile actually did.
type Result struct {
	// RemovedExisting is true if existing guestinfo keys were found and a
	// remove reconfigure task was issued. False means the remove phase was a
	// no-op and only the set task ran.
	RemovedExisting bool
}

func NewReconciler(vm *object.VirtualMachine) *Reconciler {
	return &Reconciler{vm: vm}
}

// Reconcile applies the desired guestinfo state to the VM, blocking until
// each issued reconfigure task reaches a terminal state.
func (r *Reconciler) Reconcile(ctx context.Context, gi GuestInfo) (Result, error) {
	removed, err := r.removeExisting(ctx)
	if err != nil {
		return Result{}, err
	}

	if err := r.setDesired(ctx, gi); err != nil {
		return Result{RemovedExisting: removed}, err
	}

	return Result{RemovedExisting: removed}, nil
}

// removeExisting rewrites every currently-set guestinfo key owned by this
// program to empty string, which the platform treats as a delete. Keys not
// owned by this program are carried through unchanged. Returns false without
// issuing a reconfigure when none of the owned keys are present.
func (r *Reconciler) removeExisting(ctx context.Context) (bool, error) {
	log := pkglog.FromContextOrDefault(ctx)

	extraConfig, err := getExtraConfig(ctx, r.vm)
	if err != nil {
		return false, err
	}

	if !extraConfig.HasAnyKey(Keys()...) {
		log.Info("No existing guestinfo properties found, nothing to remove")
		return false, nil
	}

	log.Info("Existing guestinfo properties found, removing them")

	owned := make(map[string]struct{}, len(Keys()))
	for _, key := range Keys() {
		owned[key] = struct{}{}
	}

	rewritten := make(pkgutil.OptionValues, 0, len(extraConfig))
	for _, option := range extraConfig {
		optVal := option.GetOptionValue()
		if optVal == nil {
			continue
		}
		if _, ok := owned[optVal.Key]; ok {
			rewritten = append(rewritten, &vimtypes.OptionValue{Key: optVal.Key, Value: ""})
		} else {
			rewritten = append(rewritten, &vimtypes.OptionValue{Key: optVal.Key, Value: optVal.Value})
		}
	}

	if err := r.reconfigure(ctx, rewritten); err != nil {
		return false, fmt.Errorf("failed to remove existing guestinfo: %w", err)
	}

	log.Info("Existing guestinfo properties have been removed")
	return true, nil
}

// setDesired appends the desired guestinfo pairs to the now-cleaned
// ExtraConfig and issues the second reconfigure.
func (r *Reconciler) setDesired(ctx context.Context, gi GuestInfo) error {
	log := pkglog.FromContextOrDefault(ctx)

	extraConfig, err := getExtraConfig(ctx, r.vm)
	if err != nil {
		return err
	}

	if err := r.reconfigure(ctx, extraConfig.Append(gi.Pairs()...)); err != nil {
		return fmt.Errorf("failed to set guestinfo: %w", err)
	}

	log.Info("Guestinfo properties have been set")
	return nil
}

func (r *Reconciler) reconfigure(ctx context.Context, extraConfig pkgutil.OptionValues) error {
	spec := vimtypes.VirtualMachineConfigSpec{ExtraConfig: extraConfig}

	task, err := r.vm.Reconfigure(ctx, spec)
	if err != nil {
		return err
	}

	if _, err := task.WaitForResult(ctx, nil); err != nil {
		return fmt.Errorf("reconfigure VM task failed: %w", err)
	}

	return nil
}

func getExtraConfig(
	ctx context.Context,
	vm *object.VirtualMachine) (pkgutil.OptionValues, error) {

	var o mo.VirtualMachine
	if err := vm.Properties(
		ctx,
		vm.Reference(),
		[]string{"config.extraConfig"},
		&o); err != nil {
		return nil, err
	}

	if o.Config == nil {
		return nil, nil
	}

	return pkgutil.OptionValues(o.Config.ExtraConfig), nil
}
