package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/twitter/dispatch/cloud/cluster/etcd"
	"github.com/twitter/dispatch/common/endpoints"
	dispatcherrors "github.com/twitter/dispatch/common/errors"
	"github.com/twitter/dispatch/common/stats"
	"github.com/twitter/dispatch/dispatch/config"
	"github.com/twitter/dispatch/dispatch/host"
	"github.com/twitter/dispatch/heartbeat"
)

type heartbeatCmd struct {
	declaredWeight int
	raw            bool
}

func (h *heartbeatCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "heartbeat",
		Short: "Sample this machine and print the heartbeat a worker on it would publish",
	}
	r.Flags().IntVar(&h.declaredWeight, "declared_weight", host.DefaultBaseHostWeight, "base weight the worker declares")
	r.Flags().BoolVar(&h.raw, "raw", false, "print only the encoded heartbeat")
	return r
}

func (h *heartbeatCmd) run(c *CLI, cmd *cobra.Command, args []string) error {
	collector := heartbeat.NewCollector(h.declaredWeight, heartbeat.DefaultThresholds(), nil, stats.NilStatsReceiver())
	r, err := collector.Collect()
	if err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.HeartbeatFailureExitCode)
	}
	out := cmd.OutOrStdout()
	if !h.raw {
		fmt.Fprintln(out, r)
	}
	fmt.Fprintln(out, heartbeat.Encode(r))
	return nil
}

type announceCmd struct {
	endpoints      []string
	prefix         string
	addr           string
	groups         []string
	declaredWeight int
	leaseTTL       time.Duration
	interval       time.Duration
}

func (a *announceCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "announce",
		Short: "Publish this machine's heartbeat to etcd as a worker until stopped",
	}
	r.Flags().StringSliceVar(&a.endpoints, "etcd_endpoints", []string{"localhost:2379"}, "etcd endpoints")
	r.Flags().StringVar(&a.prefix, "prefix", etcd.DefaultPrefix, "etcd key prefix of the worker registry")
	r.Flags().StringVar(&a.addr, "addr", "", "address tasks are dispatched to on this worker (required)")
	r.Flags().StringSliceVar(&a.groups, "groups", nil, "worker groups this worker serves")
	r.Flags().IntVar(&a.declaredWeight, "declared_weight", host.DefaultBaseHostWeight, "base weight the worker declares")
	r.Flags().DurationVar(&a.leaseTTL, "lease_ttl", etcd.DefaultLeaseTTL, "lease after which a silent worker leaves the registry")
	r.Flags().DurationVar(&a.interval, "interval", etcd.DefaultAnnounceInterval, "time between heartbeats")
	return r
}

func (a *announceCmd) run(c *CLI, cmd *cobra.Command, args []string) error {
	if a.addr == "" {
		return dispatcherrors.NewError(fmt.Errorf("--addr is required"), dispatcherrors.UsageFailureExitCode)
	}
	client, err := config.ClusterConfig{Endpoints: a.endpoints}.NewEtcdClient()
	if err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.AnnounceFailureExitCode)
	}
	defer client.Close()

	stat := endpoints.MakeStatsReceiver("worker")
	collector := heartbeat.NewCollector(a.declaredWeight, heartbeat.DefaultThresholds(), nil, stat)
	announcer := etcd.NewAnnouncer(client, etcd.AnnouncerConfig{
		Prefix:   a.prefix,
		Addr:     a.addr,
		Groups:   a.groups,
		LeaseTTL: a.leaseTTL,
		Interval: a.interval,
	}, collector.CollectEncoded, nil, stat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := announcer.Start(ctx); err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.AnnounceFailureExitCode)
	}
	c.wait(ctx)
	announcer.Stop()
	return nil
}
