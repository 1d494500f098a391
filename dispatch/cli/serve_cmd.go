package cli

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/dispatch/common/endpoints"
	dispatcherrors "github.com/twitter/dispatch/common/errors"
	"github.com/twitter/dispatch/dispatch/config"
	"github.com/twitter/dispatch/dispatch/service"
)

type serveCmd struct {
	config   string
	httpAddr string
}

func (s *serveCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "serve",
		Short: "Run the host selection service",
	}
	r.Flags().StringVar(&s.config, "config", "local.memory", "Service configuration: a preset name or JSON")
	r.Flags().StringVar(&s.httpAddr, "http_addr", "", "Overrides the configured admin HTTP address")
	return r
}

func (s *serveCmd) run(c *CLI, cmd *cobra.Command, args []string) error {
	cfg, err := config.GetServiceConfig(s.config)
	if err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.ConfigFailureExitCode)
	}
	if s.httpAddr != "" {
		cfg.HTTPAddr = s.httpAddr
	}

	svc, err := service.New(cfg, endpoints.MakeStatsReceiver("hostselector"))
	if err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.ServiceStartFailureExitCode)
	}
	defer svc.Close()
	if err := svc.Start(); err != nil {
		return dispatcherrors.NewError(err, dispatcherrors.ServiceStartFailureExitCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- svc.Serve()
		cancel()
	}()
	c.wait(ctx)

	select {
	case err := <-serveErr:
		return dispatcherrors.NewError(err, dispatcherrors.ServeFailureExitCode)
	default:
		log.Infof("Stopping host selection service")
		return nil
	}
}
