/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// connectorctl is a companion host process for the connector library ("a
// native client ... invoke functions implemented in a separate,
// long-running language runtime"): a small scriptable CLI that starts a
// connector, issues one configured echo call, and reports the result,
// exercising the transport/handshake/supervisor/client/synccall/dispatch
// stack end to end from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabouaram/connector"
	libcfg "github.com/sabouaram/connector/config"
	"github.com/sabouaram/connector/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		envPrefix  string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   "connectorctl",
		Short: "Start a connector session and issue requests against the engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "connectorctl.yaml", "path to the connector configuration file")
	root.PersistentFlags().StringVar(&envPrefix, "env-prefix", "CONNECTOR", "environment variable prefix for config overrides")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newPingCommand(&configPath, &envPrefix, &verbose))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print connectorctl's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "connectorctl (dev)")
			return nil
		},
	}
}

func newPingCommand(configPath, envPrefix *string, verbose *bool) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Start the engine, issue an echo request, and report the round trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(cmd, *configPath, *envPrefix, *verbose, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "reply timeout for the echo request")
	return cmd
}

func runPing(cmd *cobra.Command, configPath, envPrefix string, verbose bool, timeout time.Duration) error {
	loader, err := libcfg.New(configPath, envPrefix)
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	level := logger.InfoLevel
	if verbose {
		level = logger.DebugLevel
		cfg.Debug = true
	}
	log := logger.New(level)

	conn := connector.New(cfg, log, nil)

	ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()

	if err := conn.Start(ctx); err != nil {
		return fmt.Errorf("connectorctl: start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = conn.Stop(stopCtx)
	}()

	var reply []interface{}
	request := []interface{}{"EchoRequest", time.Now().UnixNano()}
	if err := conn.Call(request, &reply, timeout); err != nil {
		return fmt.Errorf("connectorctl: ping: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "engine replied: %v\n", reply)
	return nil
}
