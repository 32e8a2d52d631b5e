package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/username/mapsync"
	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/spi"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the mapping sync worker until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.logger.Infow("starting mapsync",
				"rpc", a.cfg.RPCURL,
				"db_driver", a.cfg.DBDriver,
				"strategy", a.cfg.Strategy,
				"sync_from", a.cfg.SyncFrom)

			watcher := spi.NewHeadWatcher(a.client, a.cfg.PollingInterval, a.logger)
			watcher.Start(ctx)
			defer watcher.Stop()

			worker := mapsync.NewWorker(a.syncer, watcher.Heads(), a.cfg.BatchLimit, a.cfg.PollingInterval, a.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return worker.Run(gctx)
			})
			if a.cfg.MetricsAddr != "" {
				srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: metricsMux()}
				g.Go(func() error {
					a.logger.Infow("serving metrics", "addr", a.cfg.MetricsAddr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			err = g.Wait()
			a.logger.Info("goodbye")
			return err
		},
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func newSyncCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single bounded sync round",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			if limit <= 0 {
				limit = a.cfg.BatchLimit
			}
			worker := mapsync.NewWorker(a.syncer, nil, limit, a.cfg.PollingInterval, a.logger)
			synced, err := worker.SyncOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced any: %t\n", synced)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of blocks to sync (defaults to batch_limit)")
	return cmd
}

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Query indexed mappings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "block <ethereum-block-hash>",
		Short: "List primary blocks committed to a secondary block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			hashes, err := a.store.BlockHashes(cmd.Context(), core.Hash(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd, hashes)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "tx <ethereum-transaction-hash>",
		Short: "List where a secondary transaction was included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			metadata, err := a.store.TransactionMetadata(cmd.Context(), core.Hash(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd, metadata)
		},
	})
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [block-hash]",
		Short: "Show the syncing tips, or whether a primary block is synced",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				synced, err := a.store.IsSynced(cmd.Context(), core.Hash(args[0]))
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]interface{}{"hash": args[0], "synced": synced})
			}
			tips, err := a.store.CurrentSyncingTips(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"syncing_tips": tips})
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

