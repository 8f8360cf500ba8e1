package cmd

import (
	"os"
	"time"

	"github.com/chrisdamba/menuflow/internal/cloudwriter"
	"github.com/chrisdamba/menuflow/internal/export"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the order history as Parquet, locally or to S3",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		s, closeStore, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeStore()

		orders, err := newRepos(s, cfg.Store.TenantID, log).orders.GetAll(ctx)
		if err != nil {
			return errors.Wrap(err, "load orders")
		}
		if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
			cutoff := time.Now().Add(-since)
			kept := orders[:0]
			for _, o := range orders {
				if !o.CreatedAt.Before(cutoff) {
					kept = append(kept, o)
				}
			}
			orders = kept
		}

		var factory cloudwriter.CloudWriterFactory
		if cfg.Export.Destination == "s3" {
			s3, err := cloudwriter.NewS3WriterFactory(ctx, cfg.Export.Region)
			if err != nil {
				return err
			}
			factory = s3
		} else if cfg.Export.Destination != "local" {
			return errors.Errorf("unsupported export destination %q", cfg.Export.Destination)
		}

		res, err := export.NewExporter(cfg.Export, factory, os.Stderr, log).Export(ctx, orders)
		if err != nil {
			return err
		}
		for _, f := range res.Files {
			cmd.Println(f)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("destination", "", "local or s3")
	exportCmd.Flags().String("bucket", "", "S3 bucket")
	exportCmd.Flags().Duration("since", 0, "only orders created within this window")
	_ = viper.BindPFlag("export.destination", exportCmd.Flags().Lookup("destination"))
	_ = viper.BindPFlag("export.bucket", exportCmd.Flags().Lookup("bucket"))
	rootCmd.AddCommand(exportCmd)
}
