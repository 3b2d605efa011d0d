package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/polwatch/monitor"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var withMCP, withWatch bool
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the snapshot watcher and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []monitor.Option
			if withMCP {
				// stdout carries the MCP stream.
				opts = append(opts, monitor.WithStdout(os.Stderr))
			}
			svc, err := g.service(opts...)
			if err != nil {
				return err
			}
			defer svc.Close()
			cfg := svc.Config()
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if withWatch {
				cfg.Watch.Enabled = true
			}
			logger := slog.Default()

			grp, ctx := errgroup.WithContext(cmd.Context())

			grp.Go(func() error {
				svc.RunScheduler(ctx)
				return nil
			})
			grp.Go(func() error {
				svc.RunWatcher(ctx)
				return nil
			})

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           svc.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			grp.Go(func() error {
				logger.Info("polwatch: http listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			grp.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if withMCP {
				mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "polwatch", Version: "1.0.0"}, nil)
				svc.RegisterMCP(mcpSrv)
				grp.Go(func() error {
					logger.Info("polwatch: mcp on stdio")
					if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
						return err
					}
					return nil
				})
			}

			err = grp.Wait()
			logger.Info("polwatch: stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "also serve MCP over stdin/stdout")
	cmd.Flags().BoolVar(&withWatch, "watch", false, "check policies as soon as new snapshots are stored")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}
