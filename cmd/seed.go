package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/chrisdamba/menuflow/internal/factories"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a demo menu, coupons, customers and order history",
	Long: `seed writes a demo data set for the configured tenant. With the memory
storage the data only lives as long as the command, so use it with
--storage postgres or run "serve --demo" instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		opts := demoSeedOptions(cfg)
		flags := cmd.Flags()
		opts.Profiles, _ = flags.GetInt("profiles")
		opts.Days, _ = flags.GetInt("days")
		opts.OrdersPerDay, _ = flags.GetInt("orders-per-day")
		seed, _ := flags.GetInt64("seed")
		factories.UseSeed(seed)

		ctx := cmd.Context()
		s, closeStore, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeStore()
		return seedStore(ctx, s, cfg, opts, log)
	},
}

func init() {
	seedCmd.Flags().Int("profiles", 50, "number of customer profiles")
	seedCmd.Flags().Int("days", 30, "days of order history")
	seedCmd.Flags().Int("orders-per-day", 40, "orders per day of history")
	seedCmd.Flags().Int64("seed", 42, "random seed")
	rootCmd.AddCommand(seedCmd)
}

func demoSeedOptions(cfg *models.Config) factories.SeedOptions {
	return factories.SeedOptions{
		TenantID:     cfg.Store.TenantID,
		Origin:       cfg.Store.Origin,
		RadiusKm:     cfg.Delivery.MaxRadiusKm,
		Delivery:     cfg.Delivery,
		Profiles:     20,
		Days:         7,
		OrdersPerDay: 15,
		Until:        time.Now(),
	}
}

func seedStore(ctx context.Context, s store.Store, cfg *models.Config, opts factories.SeedOptions, log logrus.FieldLogger) error {
	data := factories.BuildSeed(opts)
	r := newRepos(s, cfg.Store.TenantID, log)

	if err := r.optionGroups.BulkCreate(ctx, data.OptionGroups); err != nil {
		return errors.Wrap(err, "seed option groups")
	}
	if err := r.products.BulkCreate(ctx, data.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := r.coupons.BulkCreate(ctx, data.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	for _, p := range data.Profiles {
		if err := r.profiles.Save(ctx, p); err != nil {
			return errors.Wrapf(err, "seed profile %s", p.DeviceID)
		}
	}

	var out io.Writer = os.Stderr
	if len(data.Orders) == 0 {
		out = io.Discard
	}
	bar := progressbar.NewOptions(len(data.Orders),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("seeding orders"),
		progressbar.OptionShowCount(),
	)
	for _, o := range data.Orders {
		if err := r.orders.Create(ctx, o); err != nil {
			return errors.Wrapf(err, "seed order %s", o.ID)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	log.WithFields(logrus.Fields{
		"products":      len(data.Products),
		"option_groups": len(data.OptionGroups),
		"coupons":       len(data.Coupons),
		"profiles":      len(data.Profiles),
		"orders":        len(data.Orders),
	}).Info("demo data loaded")
	return nil
}
