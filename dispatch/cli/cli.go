// Package cli is the hostselector command line: it runs the host selection
// service, queries a running one, and publishes worker heartbeats.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type CLI struct {
	rootCmd  *cobra.Command
	logLevel string

	// waits for the process to be told to stop, replaced in tests
	wait func(ctx context.Context)
}

func (c *CLI) Exec() error {
	return c.rootCmd.Execute()
}

func NewCLI() *CLI {
	c := &CLI{wait: waitForSignal}
	c.rootCmd = &cobra.Command{
		Use:               "hostselector",
		Short:             "hostselector picks the least loaded worker of a worker group",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setupLogging,
	}
	c.rootCmd.PersistentFlags().StringVar(&c.logLevel, "log_level", "info",
		"Log everything at this level and above (error|warn|info|debug|trace)")

	c.addCmd(&serveCmd{})
	c.addCmd(&selectCmd{})
	c.addCmd(&hostsCmd{})
	c.addCmd(&heartbeatCmd{})
	c.addCmd(&announceCmd{})
	return c
}

// SetArgs replaces os.Args[1:] as the arguments of Exec.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) setupLogging(*cobra.Command, []string) error {
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

func (c *CLI) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.run(c, innerCmd, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}

type command interface {
	registerFlags() *cobra.Command
	run(c *CLI, cmd *cobra.Command, args []string) error
}

func waitForSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case sig := <-sigCh:
		log.Infof("Received %s, shutting down", sig)
	case <-ctx.Done():
	}
}
