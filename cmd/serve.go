package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrisdamba/menuflow/internal/api"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ordering API, order board and kitchen printing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, closeStore, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeStore()

		a, err := newApp(cfg, s, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if demo, _ := cmd.Flags().GetBool("demo"); demo {
			if err := seedStore(ctx, s, cfg, demoSeedOptions(cfg), log); err != nil {
				return errors.Wrap(err, "seed demo data")
			}
		}

		if _, err := a.spooler.Resume(ctx, a.repos.orders); err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewServer(a.catalog, a.sessions, a.board, a.tracker, a.repos.orders, log).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return a.catalog.Watch(gctx, a.catalogSource())
		})
		g.Go(func() error {
			return a.board.Watch(gctx)
		})
		g.Go(func() error {
			return a.spooler.Run(gctx)
		})
		g.Go(func() error {
			log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "http server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		log.WithFields(logrus.Fields{"pending_print_jobs": a.spooler.Pending()}).Info("server stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().String("http-addr", "", "address to listen on (default :8080)")
	serveCmd.Flags().Bool("demo", false, "load the demo menu before serving")
	_ = viper.BindPFlag("http_addr", serveCmd.Flags().Lookup("http-addr"))
	rootCmd.AddCommand(serveCmd)
}
