// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/vmware/govmomi/fault"
	vimtypes "github.com/vmware/govmomi/vim25/types"
	klog "k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/rdavisunr/set-vm-guestinfo/pkg"
	pkgerr "github.com/rdavisunr/set-vm-guestinfo/pkg/errors"
	pkglog "github.com/rdavisunr/set-vm-guestinfo/pkg/log"
	vcclient "github.com/rdavisunr/set-vm-guestinfo/pkg/vsphere/client"
	"github.com/rdavisunr/set-vm-guestinfo/pkg/vsphere/guestinfo"
	"github.com/rdavisunr/set-vm-guestinfo/pkg/vsphere/lookup"
)

type options struct {
	host     string
	port     string
	username string
	password string
	caFile   string
	insecure bool

	vcdOrg              string
	encodedMetadata     string
	encodedUserdataFile string
}

func newCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-vm-guestinfo VM_NAME",
		Short: "Set cloud-init guestinfo properties on a vSphere VM",
		Long: `set-vm-guestinfo writes gzip+base64 encoded cloud-init metadata and
userdata into a VM's guestinfo ExtraConfig keys.

The VM is resolved by name prefix within the resource pool backing the given
VCD organization. The org name is assumed to be a prefix of the pool name,
e.g. org "some-org" backs pool "some-org (6a599705-...)". Existing guestinfo
keys are removed before the new values are written.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.vcdOrg, "vcd-org", "",
		"VCD organization name fragment used to resolve the resource pool")
	flags.StringVar(&opts.encodedMetadata, "encoded-metadata", "",
		"gzip+base64 encoded cloud-init metadata")
	flags.StringVar(&opts.encodedUserdataFile, "encoded-userdata-file", "",
		"path to a file whose full text is the gzip+base64 encoded cloud-init userdata")
	flags.StringVar(&opts.host, "host", os.Getenv("GOVC_URL"),
		"vCenter hostname")
	flags.StringVar(&opts.port, "port", "443",
		"vCenter port")
	flags.StringVar(&opts.username, "username", os.Getenv("GOVC_USERNAME"),
		"vCenter username")
	flags.StringVar(&opts.password, "password", os.Getenv("GOVC_PASSWORD"),
		"vCenter password")
	flags.StringVar(&opts.caFile, "ca-file", "",
		"path to a CA bundle used to verify the vCenter certificate")
	flags.BoolVar(&opts.insecure, "insecure", false,
		"skip verification of the vCenter certificate")

	for _, name := range []string{"vcd-org", "encoded-metadata", "encoded-userdata-file"} {
		cobra.CheckErr(cmd.MarkFlagRequired(name))
	}

	return cmd
}

func run(ctx context.Context, opts *options, vmNameFragment string) error {
	log := pkglog.FromContextOrDefault(ctx)

	c, err := vcclient.NewClient(ctx, vcclient.Config{
		Host:       opts.host,
		Port:       opts.port,
		Username:   opts.username,
		Password:   opts.password,
		CAFilePath: opts.caFile,
		Insecure:   opts.insecure,
	})
	if err != nil {
		return err
	}
	defer c.Logout(ctx)

	pool, err := lookup.ResourcePoolByPrefix(ctx, c.VimClient(), opts.vcdOrg)
	if err != nil {
		return err
	}

	vm, err := lookup.VirtualMachineByPrefix(ctx, c.VimClient(), pool, vmNameFragment)
	if err != nil {
		return err
	}

	encodedUserdata, err := os.ReadFile(opts.encodedUserdataFile)
	if err != nil {
		return fmt.Errorf("failed to read encoded userdata: %w", err)
	}

	gi := guestinfo.GuestInfo{
		EncodedMetadata: opts.encodedMetadata,
		EncodedUserdata: string(encodedUserdata),
	}

	result, err := guestinfo.NewReconciler(vm).Reconcile(ctx, gi)
	if err != nil {
		return err
	}

	written, err := guestinfo.GetExtraConfigGuestInfo(ctx, vm)
	if err != nil {
		log.Error(err, "Failed to read back guestinfo after reconcile")
		return nil
	}

	log.Info("Guestinfo reconciled",
		"vm", vm.Reference().Value,
		"keys", len(written),
		"removedExisting", result.RemovedExisting)

	return nil
}

func main() {
	klog.InitFlags(nil)
	logger := textlogger.NewLogger(textlogger.NewConfig())
	ctx := logr.NewContext(context.Background(), logger)

	logger.Info("set-vm-guestinfo build info",
		"version", pkg.BuildVersion,
		"buildnumber", pkg.BuildNumber,
		"buildtype", pkg.BuildType,
		"commit", pkg.BuildCommit)

	opts := &options{}

	if err := newCommand(opts).ExecuteContext(ctx); err != nil {
		if pkgerr.IsNotFoundError(err) {
			logger.Error(err, "Object not found")
		} else if msg, ok := platformFaultMessage(err); ok {
			logger.Error(err, "Caught platform fault", "fault", msg)
		} else {
			logger.Error(err, "Caught unexpected error")
		}
		os.Exit(1)
	}
}

// platformFaultMessage returns the localized message of the first structured
// vim fault in err's tree, if any.
func platformFaultMessage(err error) (string, bool) {
	var (
		msg   string
		found bool
	)
	fault.In(err, func(_ vimtypes.BaseMethodFault, localizedMessage string, _ []vimtypes.LocalizableMessage) bool {
		msg = localizedMessage
		found = true
		return false
	})
	return msg, found
}
