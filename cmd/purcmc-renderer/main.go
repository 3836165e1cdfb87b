// Command purcmc-renderer runs the PurCMC renderer core: a dual Unix-domain
// / WebSocket server speaking the PurCMC wire protocol, per spec.md.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HVML/purcmc-renderer/internal/backend"
	"github.com/HVML/purcmc-renderer/internal/config"
	"github.com/HVML/purcmc-renderer/pkg/purcmc"
)

var configFile string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Defaults()

	root := &cobra.Command{
		Use:           "purcmc-renderer",
		Short:         "PurCMC HVML renderer server core",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, cfg)
		},
	}

	root.Flags().StringVar(&configFile, "config", "", "path to an optional config file")
	config.BindFlags(root.Flags(), &cfg)

	return root
}

// runServe loads the final configuration, builds the server, and runs it
// until SIGINT/SIGTERM, per the graceful-shutdown shape go-mizu-mizu's
// serve command uses. The GUI toolkit, layout engine, and rendering
// subprocess are explicitly out of scope for this core (spec.md §1); this
// binary wires backend.Fake in their place so the protocol server runs
// standalone, the same role Fake plays in this module's own tests.
func runServe(cmd *cobra.Command, cfg config.Config) error {
	if err := config.Load(cmd.Flags(), &cfg, configFile); err != nil {
		return err
	}

	logger := log.New(os.Stderr, "purcmc: ", log.LstdFlags)

	fake := backend.NewFake()
	fake.AutoConfirm = true
	srv := purcmc.New(cfg, purcmc.Collaborators{
		WidgetBackend:            fake,
		RenderSubprocess:         fake,
		ConfirmationCollaborator: fake,
	}, logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("shutting down")
		cancel()
	}()

	logger.Printf("listening: socket=%q addr=%q", cfg.UnixSocketPath, cfg.TCPAddr)
	return srv.Run(ctx)
}
