package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/archsdn/sectorctl/internal/config"
	"github.com/archsdn/sectorctl/internal/openflow"
)

func main() {
	if err := getRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func getRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "sectorctl",
		Short:        "Distributed SDN sector controller",
		SilenceUsage: true,
	}
	var overrides serveOverrides
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sector controller, serving peer RPCs until terminated",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, &overrides)
		},
	}
	overrides.bind(serveCmd.Flags())
	root.AddCommand(serveCmd)
	return root
}

// serveOverrides are the flag-sourced configuration values. Flags the user
// actually set win over their environment-sourced counterparts.
type serveOverrides struct {
	id             string
	controllerIP   string
	controllerPort int
	centralIP      string
	centralPort    int
	dbLocation     string
	logLevel       string
}

func (o *serveOverrides) bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.id, "id", "", "controller UUID (defaults to a freshly generated one)")
	fs.StringVar(&o.controllerIP, "controller-ip", "", "address the peer RPC server binds")
	fs.IntVar(&o.controllerPort, "controller-port", 0, "port the peer RPC server binds")
	fs.StringVar(&o.centralIP, "central-ip", "", "central registry address")
	fs.IntVar(&o.centralPort, "central-port", 0, "central registry port")
	fs.StringVar(&o.dbLocation, "db-location", "", "database location (:memory: or a filesystem path)")
	fs.StringVar(&o.logLevel, "log-level", "", "log level")
}

func (o *serveOverrides) apply(fs *pflag.FlagSet, env *config.Env) {
	if fs.Changed("id") {
		env.ID = o.id
	}
	if fs.Changed("controller-ip") {
		env.ControllerIP = o.controllerIP
	}
	if fs.Changed("controller-port") {
		env.ControllerPort = o.controllerPort
	}
	if fs.Changed("central-ip") {
		env.CentralIP = o.centralIP
	}
	if fs.Changed("central-port") {
		env.CentralPort = o.centralPort
	}
	if fs.Changed("db-location") {
		env.DBLocation = o.dbLocation
	}
	if fs.Changed("log-level") {
		env.LogLevel = o.logLevel
	}
}

func runServe(cmd *cobra.Command, overrides *serveOverrides) error {
	env, err := config.LoadEnv(cmd.Context())
	if err != nil {
		return err
	}
	overrides.apply(cmd.Flags(), &env)
	if env.CentralIP == "" {
		return errors.New("no central registry address: set SECTORCTL_CENTRAL_IP or pass --central-ip")
	}
	ctx := makeBaseLogger(cmd.Context(), env.LogLevel)

	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{EnableSignalHandling: true})
	events := make(chan openflow.Event)
	grp.Go("sectorctl", func(ctx context.Context) error {
		return serve(ctx, env, events)
	})
	grp.Go("openflow-events", func(ctx context.Context) error {
		return pumpEvents(ctx, events)
	})
	return grp.Wait()
}

// pumpEvents is the OpenFlow adapter's event-pump goroutine: it dispatches
// every event the adapter delivers to openflow.HandleEvent until events is
// closed or ctx is cancelled. The adapter itself is out of scope here, so in
// this repository nothing ever sends on the channel; a real deployment's
// adapter implementation owns the send side.
func pumpEvents(ctx context.Context, events <-chan openflow.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			openflow.HandleEvent(ctx, ev)
		}
	}
}

func makeBaseLogger(ctx context.Context, levelName string) context.Context {
	logrusLogger := logrus.New()
	if level, err := logrus.ParseLevel(levelName); err == nil {
		logrusLogger.SetLevel(level)
	}
	logger := dlog.WrapLogrus(logrusLogger)
	dlog.SetFallbackLogger(logger)
	return dlog.WithLogger(ctx, logger)
}
