// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

package lookup_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"
	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/simulator"
	vimtypes "github.com/vmware/govmomi/vim25/types"

	pkgerr "github.com/rdavisunr/set-vm-guestinfo/pkg/errors"
	"github.com/rdavisunr/set-vm-guestinfo/pkg/vsphere/lookup"
)

var _ = Describe("Lookup", func() {

	var (
		ctx    context.Context
		model  *simulator.Model
		server *simulator.Server
		vc     *govmomi.Client
		finder *find.Finder
	)

	BeforeEach(func() {
		ctx = logr.NewContext(context.Background(), GinkgoLogr)

		model = simulator.VPX()
		model.Pool = 1
		Expect(model.Create()).To(Succeed())

		server = model.Service.NewServer()

		var err error
		vc, err = govmomi.NewClient(ctx, server.URL, true)
		Expect(err).ToNot(HaveOccurred())

		finder = find.NewFinder(vc.Client)
		dc, err := finder.DefaultDatacenter(ctx)
		Expect(err).ToNot(HaveOccurred())
		finder.SetDatacenter(dc)
	})

	AfterEach(func() {
		server.Close()
		model.Remove()
	})

	Describe("ResourcePoolByPrefix", func() {

		When("a pool name starts with the fragment", func() {
			It("returns the first matching pool", func() {
				pool, err := lookup.ResourcePoolByPrefix(ctx, vc.Client, "DC0_C0_RP")
				Expect(err).ToNot(HaveOccurred())

				name, err := pool.ObjectName(ctx)
				Expect(err).ToNot(HaveOccurred())
				Expect(strings.HasPrefix(name, "DC0_C0_RP")).To(BeTrue())
			})
		})

		When("the fragment is an org name backing a pool with a uuid suffix", func() {
			BeforeEach(func() {
				createPool(ctx, finder, "acme (abc-123)")
				createPool(ctx, finder, "other")
			})

			It("matches the pool by prefix", func() {
				pool, err := lookup.ResourcePoolByPrefix(ctx, vc.Client, "acme")
				Expect(err).ToNot(HaveOccurred())

				name, err := pool.ObjectName(ctx)
				Expect(err).ToNot(HaveOccurred())
				Expect(name).To(Equal("acme (abc-123)"))
			})
		})

		When("no pool name starts with the fragment", func() {
			It("returns a NotFoundError", func() {
				pool, err := lookup.ResourcePoolByPrefix(ctx, vc.Client, "enoent")
				Expect(err).To(HaveOccurred())
				Expect(pool).To(BeNil())
				Expect(pkgerr.IsNotFoundError(err)).To(BeTrue())
				Expect(err.Error()).To(ContainSubstring(`"enoent*"`))
			})
		})
	})

	Describe("VirtualMachineByPrefix", func() {

		When("a VM in the pool matches the fragment", func() {
			It("returns the VM", func() {
				pool, err := finder.ResourcePool(ctx, "/DC0/host/DC0_C0/Resources")
				Expect(err).ToNot(HaveOccurred())

				vm, err := lookup.VirtualMachineByPrefix(ctx, vc.Client, pool, "DC0_C0_RP0_VM")
				Expect(err).ToNot(HaveOccurred())

				name, err := vm.ObjectName(ctx)
				Expect(err).ToNot(HaveOccurred())
				Expect(strings.HasPrefix(name, "DC0_C0_RP0_VM")).To(BeTrue())
			})
		})

		When("the only matching VMs live outside the pool", func() {
			It("returns a NotFoundError", func() {
				pool, err := finder.ResourcePool(ctx, "/DC0/host/DC0_H0/Resources")
				Expect(err).ToNot(HaveOccurred())

				vm, err := lookup.VirtualMachineByPrefix(ctx, vc.Client, pool, "DC0_C0_RP0_VM")
				Expect(err).To(HaveOccurred())
				Expect(vm).To(BeNil())
				Expect(pkgerr.IsNotFoundError(err)).To(BeTrue())
			})
		})

		When("the VM lives in a nested org pool", func() {
			It("matches the VM by prefix", func() {
				orgPool := createPool(ctx, finder, "acme (abc-123)")
				createVM(ctx, finder, orgPool, "web-01")

				vm, err := lookup.VirtualMachineByPrefix(ctx, vc.Client, orgPool, "web")
				Expect(err).ToNot(HaveOccurred())

				name, err := vm.ObjectName(ctx)
				Expect(err).ToNot(HaveOccurred())
				Expect(name).To(Equal("web-01"))
			})
		})
	})
})

func createPool(ctx context.Context, finder *find.Finder, name string) *object.ResourcePool {
	parent, err := finder.ResourcePool(ctx, "/DC0/host/DC0_C0/Resources")
	ExpectWithOffset(1, err).ToNot(HaveOccurred())

	pool, err := parent.Create(ctx, name, vimtypes.DefaultResourceConfigSpec())
	ExpectWithOffset(1, err).ToNot(HaveOccurred())

	return pool
}

func createVM(
	ctx context.Context,
	finder *find.Finder,
	pool *object.ResourcePool,
	name string) *object.VirtualMachine {

	folder, err := finder.Folder(ctx, "/DC0/vm")
	ExpectWithOffset(1, err).ToNot(HaveOccurred())

	spec := vimtypes.VirtualMachineConfigSpec{
		Name:  name,
		Files: &vimtypes.VirtualMachineFileInfo{VmPathName: "[LocalDS_0] " + name},
	}

	task, err := folder.CreateVM(ctx, spec, pool, nil)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())

	result, err := task.WaitForResult(ctx, nil)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())

	return object.NewVirtualMachine(
		pool.Client(),
		result.Result.(vimtypes.ManagedObjectReference))
}
