// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: Apache-2.0

package client_test

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"
	"github.com/vmware/govmomi/simulator"

	"github.com/rdavisunr/set-vm-guestinfo/pkg/vsphere/client"
)

const (
	invalid = "invalid"
	valid   = "valid"
)

var _ = Describe("NewClient", func() {

	var (
		ctx context.Context
		cfg client.Config

		model     *simulator.Model
		server    *simulator.Server
		tlsConfig *tls.Config

		expectedUsername string
		expectedPassword string
		serverCertFile   string
	)

	BeforeEach(func() {
		ctx = logr.NewContext(context.Background(), GinkgoLogr)
		expectedUsername = valid
		expectedPassword = valid
		tlsConfig = &tls.Config{}
	})

	JustBeforeEach(func() {
		model = simulator.VPX()
		Expect(model.Create()).To(Succeed())

		model.Service.RegisterEndpoints = true

		// Get a free port on localhost and use that for the server.
		addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		l, err := net.ListenTCP("tcp", addr)
		Expect(err).ToNot(HaveOccurred())
		Expect(l.Close()).To(Succeed())
		model.Service.Listen = &url.URL{
			Host: l.Addr().String(),
			User: url.UserPassword(expectedUsername, expectedPassword),
		}

		// Configure TLS.
		model.Service.TLS = tlsConfig

		server = model.Service.NewServer()

		f, err := server.CertificateFile()
		Expect(err).ToNot(HaveOccurred())
		serverCertFile = f

		cfg = client.Config{
			Host:       server.URL.Hostname(),
			Port:       server.URL.Port(),
			Username:   expectedUsername,
			Password:   expectedPassword,
			CAFilePath: serverCertFile,
		}
	})

	AfterEach(func() {
		server.Close()
		model.Remove()
	})

	When("the credentials are valid", func() {
		It("returns a logged-in client", func() {
			c, err := client.NewClient(ctx, cfg)
			Expect(err).ToNot(HaveOccurred())
			Expect(c).ToNot(BeNil())
			Expect(c.Valid()).To(BeTrue())
			Expect(c.Config().Host).To(Equal(cfg.Host))
			c.Logout(ctx)
		})
	})

	When("the CA is not trusted and insecure is set", func() {
		It("returns a logged-in client", func() {
			cfg.CAFilePath = ""
			cfg.Insecure = true
			c, err := client.NewClient(ctx, cfg)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Valid()).To(BeTrue())
			c.Logout(ctx)
		})
	})

	When("the password is invalid", func() {
		It("returns an invalid login error", func() {
			cfg.Password = invalid
			c, err := client.NewClient(ctx, cfg)
			Expect(err).To(HaveOccurred())
			Expect(c).To(BeNil())
			Expect(client.IsInvalidLogin(err)).To(BeTrue())
		})
	})

	When("the host cannot be parsed", func() {
		It("returns an error", func() {
			cfg.Host = "not a host"
			c, err := client.NewClient(ctx, cfg)
			Expect(err).To(HaveOccurred())
			Expect(c).To(BeNil())
		})
	})
})
