package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/twitter/dispatch/cloud/cluster"
	dispatcherrors "github.com/twitter/dispatch/common/errors"
	"github.com/twitter/dispatch/common/resolver"
	"github.com/twitter/dispatch/dispatch/client"
	"github.com/twitter/dispatch/dispatch/service"
)

const (
	defaultServiceAddr = "localhost:9091"
	serviceAddrEnv     = "HOSTSELECTOR_ADDR"
)

// serviceClient talks to the service at addr, $HOSTSELECTOR_ADDR, or the
// default address, whichever is set first.
func serviceClient(addr string) (*client.Client, error) {
	resolved, err := resolver.NewCompositeResolver(
		resolver.NewConstantResolver(addr),
		resolver.NewEnvResolver(serviceAddrEnv),
		resolver.NewConstantResolver(defaultServiceAddr)).Resolve()
	if err != nil {
		return nil, err
	}
	return client.NewClient(resolved, nil), nil
}

type selectCmd struct {
	addr  string
	group string
	count int
}

func (s *selectCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "select",
		Short: "Ask a running service for a host of a worker group",
	}
	r.Flags().StringVar(&s.addr, "addr", "", "host selection service address (default $"+serviceAddrEnv+" or "+defaultServiceAddr+")")
	r.Flags().StringVar(&s.group, "group", cluster.DefaultWorkerGroup, "worker group to select from")
	r.Flags().IntVar(&s.count, "count", 1, "number of selections to make")
	return r
}

func (s *selectCmd) run(c *CLI, cmd *cobra.Command, args []string) error {
	cl, err := serviceClient(s.addr)
	if err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.UsageFailureExitCode)
	}
	for i := 0; i < s.count; i++ {
		h, ok, err := cl.Select(s.group)
		if err != nil {
			return dispatcherrors.NewError(err, dispatcherrors.RequestFailureExitCode)
		}
		if !ok {
			return dispatcherrors.NewError(fmt.Errorf("no host available in worker group %s", s.group),
				dispatcherrors.NoHostAvailableExitCode)
		}
		fmt.Fprintln(cmd.OutOrStdout(), h.Address)
	}
	return nil
}

type hostsCmd struct {
	addr string
}

func (h *hostsCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "hosts",
		Short: "Print the live host weights of a running service",
	}
	r.Flags().StringVar(&h.addr, "addr", "", "host selection service address (default $"+serviceAddrEnv+" or "+defaultServiceAddr+")")
	return r
}

func (h *hostsCmd) run(c *CLI, cmd *cobra.Command, args []string) error {
	cl, err := serviceClient(h.addr)
	if err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.UsageFailureExitCode)
	}
	hosts, err := cl.Hosts()
	if err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.RequestFailureExitCode)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "generation %d\n", hosts.Generation)
	for _, group := range sortedGroups(hosts.Groups) {
		for _, hw := range hosts.Groups[group] {
			fmt.Fprintf(out, "%s\t%s\tweight: %.3f\tcpu: %.3f\tmem: %.3f\tload: %.3f\n",
				group, hw.Address, hw.Weight, hw.CPUUsage, hw.MemoryUsage, hw.LoadAverage)
		}
	}
	return nil
}

func sortedGroups(groups map[string][]service.HostJSON) []string {
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}
