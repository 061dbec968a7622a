/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/agent"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/common/log"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/config"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/kms/legacykms"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/protocol/basicmessage"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/protocol/trustping"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/suite"
)

var logger = log.New("apts/cmd")

type rootFlags struct {
	configPath string
	selects    []string
	list       bool
	output     string
	manual     bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "apts",
		Short:        "Aries protocol conformance test suite",
		Long:         "Runs protocol conformance tests against an agent under test and emits an interop profile report.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "suite-config", "c", "config.yml", "path to the suite configuration file")
	cmd.Flags().StringArrayVarP(&flags.selects, "select", "S", nil, "regex selecting tests by flat name (protocol,version,role,name); repeatable")
	cmd.Flags().BoolVarP(&flags.list, "list", "L", false, "list matching tests without running them")
	cmd.Flags().StringVarP(&flags.output, "output", "O", "", "write the interop profile report to this file")
	cmd.Flags().BoolVar(&flags.manual, "manual", false, "include tests that need operator interaction")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (critical, error, warning, info, debug)")

	return cmd
}

func run(cmd *cobra.Command, flags *rootFlags) error {
	// local overrides, absence is not an error
	_ = godotenv.Load()

	if flags.logLevel != "" {
		level, err := log.ParseLevel(flags.logLevel)
		if err != nil {
			return err
		}

		log.SetDefaultLevel(level)
	}

	registry, err := newRegistry()
	if err != nil {
		return err
	}

	if flags.list {
		patterns := append([]string{}, flags.selects...)

		// listing honors the config's tests patterns too, but works
		// without a config file
		cfg, err := config.Load(flags.configPath)
		switch {
		case err == nil:
			patterns = append(patterns, cfg.Tests...)
		case !errors.Is(err, os.ErrNotExist):
			return err
		}

		return list(cmd, registry, patterns, flags.manual)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	patterns := append([]string{}, flags.selects...)
	patterns = append(patterns, cfg.Tests...)

	selected, err := registry.Select(patterns, flags.manual)
	if err != nil {
		return err
	}

	if len(selected) == 0 {
		return errors.New("no tests selected")
	}

	a, err := buildAgent(cfg)
	if err != nil {
		return err
	}

	if err := a.Start(); err != nil {
		return err
	}

	defer func() {
		if err := a.Stop(); err != nil {
			logger.Errorf("agent shutdown: %v", err)
		}
	}()

	subject := suite.Subject{
		Name:     cfg.Subject.Name,
		Version:  cfg.Subject.Version,
		Endpoint: cfg.Subject.Endpoint,
		VerKey:   cfg.Subject.VerKey,
	}

	runner := suite.NewRunner(&suite.Context{Agent: a, Subject: subject})

	results, err := runner.Run(selected)
	if err != nil {
		return err
	}

	report := suite.NewReport(subject, results)

	fmt.Fprintln(cmd.OutOrStdout(), report.Summary())

	if err := report.Write(cmd.OutOrStdout()); err != nil {
		return err
	}

	if flags.output != "" {
		if err := report.WriteFile(flags.output); err != nil {
			return err
		}

		logger.Infof("interop profile written to %s", flags.output)
	}

	if !report.AllPassed() {
		return errors.New("one or more tests did not pass")
	}

	return nil
}

func newRegistry() (*suite.Registry, error) {
	registry := suite.NewRegistry()

	for _, register := range []func(*suite.Registry) error{
		trustping.Register,
		basicmessage.Register,
	} {
		if err := register(registry); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func list(cmd *cobra.Command, registry *suite.Registry, patterns []string, manual bool) error {
	selected, err := registry.Select(patterns, manual)
	if err != nil {
		return err
	}

	for _, e := range selected {
		fmt.Fprintln(cmd.OutOrStdout(), e.Descriptor.String())
	}

	return nil
}

func buildAgent(cfg *config.Suite) (*agent.Agent, error) {
	wallet, err := legacykms.Open(cfg.Wallet.Name, cfg.Wallet.Passphrase, cfg.Wallet.Ephemeral)
	if err != nil {
		return nil, err
	}

	opts, err := transportOpts(cfg)
	if err != nil {
		return nil, err
	}

	opts = append(opts, agent.WithEndpoint(cfg.Endpoint))

	a, err := agent.New(wallet, opts...)
	if err != nil {
		return nil, err
	}

	bindPushHandler(a)

	return a, nil
}
