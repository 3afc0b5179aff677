// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

// Package lookup resolves inventory objects by name prefix. The fragment is
// matched against the object name with first match winning; enumeration order
// is whatever the platform returns and is not guaranteed stable.
package lookup

import (
	"context"
	"strings"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/mo"

	pkgerr "github.com/rdavisunr/set-vm-guestinfo/pkg/errors"
	pkglog "github.com/rdavisunr/set-vm-guestinfo/pkg/log"
)

const (
	resourcePoolType   = "ResourcePool"
	virtualMachineType = "VirtualMachine"
)

// ResourcePoolByPrefix returns the first resource pool visible to the session
// whose name starts with the provided fragment. A vCloud Director org name is
// expected to be a prefix of its backing resource pool's name, e.g. org
// "some-org" backs pool "some-org (6a599705-6e7a-41cd-9c1d-214a87539aeb)".
func ResourcePoolByPrefix(
	ctx context.Context,
	vimClient *vim25.Client,
	fragment string) (*object.ResourcePool, error) {

	log := pkglog.FromContextOrDefault(ctx)

	vm := view.NewManager(vimClient)

	cv, err := vm.CreateContainerView(
		ctx,
		vimClient.ServiceContent.RootFolder,
		[]string{resourcePoolType},
		true)
	if err != nil {
		return nil, err
	}
	defer destroyView(ctx, cv)

	var pools []mo.ResourcePool
	if err := cv.Retrieve(ctx, []string{resourcePoolType}, []string{"name"}, &pools); err != nil {
		return nil, err
	}

	for i := range pools {
		if strings.HasPrefix(pools[i].Name, fragment) {
			log.Info("Found resource pool", "name", pools[i].Name)
			return object.NewResourcePool(vimClient, pools[i].Self), nil
		}
	}

	return nil, pkgerr.NotFoundError{Kind: resourcePoolType, Fragment: fragment}
}

// VirtualMachineByPrefix returns the first VM contained, recursively, within
// the provided resource pool whose name starts with the provided fragment.
func VirtualMachineByPrefix(
	ctx context.Context,
	vimClient *vim25.Client,
	pool *object.ResourcePool,
	fragment string) (*object.VirtualMachine, error) {

	log := pkglog.FromContextOrDefault(ctx)

	vm := view.NewManager(vimClient)

	cv, err := vm.CreateContainerView(
		ctx,
		pool.Reference(),
		[]string{virtualMachineType},
		true)
	if err != nil {
		return nil, err
	}
	defer destroyView(ctx, cv)

	var vms []mo.VirtualMachine
	if err := cv.Retrieve(ctx, []string{virtualMachineType}, []string{"name"}, &vms); err != nil {
		return nil, err
	}

	for i := range vms {
		if strings.HasPrefix(vms[i].Name, fragment) {
			log.Info("Found VM in resource pool", "name", vms[i].Name, "pool", pool.Reference().Value)
			return object.NewVirtualMachine(vimClient, vms[i].Self), nil
		}
	}

	return nil, pkgerr.NotFoundError{Kind: virtualMachineType, Fragment: fragment}
}

// destroyView releases the server-side container view. Views are destroyed
// with a background context so cleanup still happens when ctx is canceled.
func destroyView(ctx context.Context, cv *view.ContainerView) {
	if err := cv.Destroy(context.Background()); err != nil {
		pkglog.FromContextOrDefault(ctx).Error(err, "Failed to destroy container view")
	}
}
