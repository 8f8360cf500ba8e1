package cmd

import (
	"fmt"
	"os"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "menuflow",
	Short: "Digital ordering for restaurants",
	Long: `menuflow runs the ordering backend of a restaurant: channel-aware menu and
combos, customer carts with coupons and upsell suggestions, order submission
and the kitchen order board with printing.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./menuflow.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("storage", "", "storage backend (memory or postgres)")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("storage", rootCmd.PersistentFlags().Lookup("storage"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.AutomaticEnv()
}

// loadConfig reads the configuration and builds the logger every command
// shares.
func loadConfig() (*models.Config, *logrus.Logger, error) {
	cfg, err := models.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(cfg.LogLevel)
	if used := viper.ConfigFileUsed(); used != "" {
		log.WithField("file", used).Debug("using config file")
	}
	return cfg, log, nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
