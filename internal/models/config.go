package models

import (
	"fmt"
	"reflect"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Current versions of the per-domain settings structs. A zero version in a
// loaded file means "unversioned" and is upgraded by ApplyDefaults.
const (
	DeliverySettingsVersion = 1
	ScheduleSettingsVersion = 1
	PrinterSettingsVersion  = 1
	LoyaltySettingsVersion  = 1
	UpsellSettingsVersion   = 1
)

type StoreSettings struct {
	TenantID string   `mapstructure:"tenant_id"`
	Name     string   `mapstructure:"name"`
	Channel  string   `mapstructure:"channel"`
	Origin   Location `mapstructure:"origin"`
}

type DeliverySettings struct {
	Version               int             `mapstructure:"version"`
	BaseFee               decimal.Decimal `mapstructure:"base_fee"`
	FreeShippingThreshold decimal.Decimal `mapstructure:"free_shipping_threshold"`
	PricePerKm            decimal.Decimal `mapstructure:"price_per_km"`
	MaxRadiusKm           float64         `mapstructure:"max_radius_km"`
	FeeLookupTimeout      time.Duration   `mapstructure:"fee_lookup_timeout"`
	ServiceURL            string          `mapstructure:"service_url"`
}

type DaySchedule struct {
	Weekday string `mapstructure:"weekday"` // "monday" ... "sunday"
	Open    string `mapstructure:"open"`    // "HH:MM"
	Close   string `mapstructure:"close"`   // "HH:MM", may be past midnight
}

type ScheduleSettings struct {
	Version    int           `mapstructure:"version"`
	Timezone   string        `mapstructure:"timezone"`
	AlwaysOpen bool          `mapstructure:"always_open"`
	Days       []DaySchedule `mapstructure:"days"`
}

type PrinterSettings struct {
	Version        int           `mapstructure:"version"`
	Enabled        bool          `mapstructure:"enabled"`
	Mode           string        `mapstructure:"mode"` // "kitchen" or "full"
	Copies         int           `mapstructure:"copies"`
	Topic          string        `mapstructure:"topic"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

type LoyaltySettings struct {
	Version                int  `mapstructure:"version"`
	EnforceNewCustomerOnly bool `mapstructure:"enforce_new_customer_only"`
}

type UpsellRule struct {
	Category string   `mapstructure:"category"`
	Keywords []string `mapstructure:"keywords"`
}

type UpsellSettings struct {
	Version                int           `mapstructure:"version"`
	Enabled                bool          `mapstructure:"enabled"`
	StrategyTimeout        time.Duration `mapstructure:"strategy_timeout"`
	AITimeout              time.Duration `mapstructure:"ai_timeout"`
	AIServiceURL           string        `mapstructure:"ai_service_url"`
	SnackTerms             []string      `mapstructure:"snack_terms"`
	DrinkTerms             []string      `mapstructure:"drink_terms"`
	SideTerms              []string      `mapstructure:"side_terms"`
	PreferredDrinkKeywords []string      `mapstructure:"preferred_drink_keywords"`
	PreferredSideKeywords  []string      `mapstructure:"preferred_side_keywords"`
	Rules                  []UpsellRule  `mapstructure:"rules"`
}

type KafkaSettings struct {
	Enabled     bool   `mapstructure:"enabled"`
	BrokerList  string `mapstructure:"broker_list"`
	OrderTopic  string `mapstructure:"order_topic"`
	StatusTopic string `mapstructure:"status_topic"`
	// JournalPath, when set, also appends every published event as JSON
	// lines under this directory.
	JournalPath string `mapstructure:"journal_path"`
}

type ExportSettings struct {
	OutputPath  string `mapstructure:"output_path"`
	Folder      string `mapstructure:"folder"`
	Destination string `mapstructure:"destination"` // "local" or "s3"
	Bucket      string `mapstructure:"bucket"`
	Region      string `mapstructure:"region"`
}

type Config struct {
	Storage  string           `mapstructure:"storage"` // "memory" or "postgres"
	HTTPAddr string           `mapstructure:"http_addr"`
	LogLevel string           `mapstructure:"log_level"`
	Store    StoreSettings    `mapstructure:"store"`
	Delivery DeliverySettings `mapstructure:"delivery"`
	Schedule ScheduleSettings `mapstructure:"schedule"`
	Printer  PrinterSettings  `mapstructure:"printer"`
	Loyalty  LoyaltySettings  `mapstructure:"loyalty"`
	Upsell   UpsellSettings   `mapstructure:"upsell"`
	Kafka    KafkaSettings    `mapstructure:"kafka"`
	Export   ExportSettings   `mapstructure:"export"`
}

// DatabaseConfig is read from MENUFLOW_DB_* environment variables so that
// credentials never live in the config file.
type DatabaseConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" default:"postgres"`
	Password string `envconfig:"PASSWORD"`
	Name     string `envconfig:"NAME" default:"menuflow"`
	SSLMode  string `envconfig:"SSL_MODE" default:"disable"`
	MaxConns int32  `envconfig:"MAX_CONNS" default:"10"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns)
}

func LoadDatabaseConfig() (DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := envconfig.Process("menuflow_db", &cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("unable to read database env: %w", err)
	}
	return cfg, nil
}

func DefaultDeliverySettings() DeliverySettings {
	return DeliverySettings{
		Version:               DeliverySettingsVersion,
		BaseFee:               decimal.NewFromInt(5),
		FreeShippingThreshold: decimal.Zero,
		PricePerKm:            decimal.NewFromInt(1),
		MaxRadiusKm:           10,
		FeeLookupTimeout:      2 * time.Second,
	}
}

func DefaultScheduleSettings() ScheduleSettings {
	return ScheduleSettings{
		Version:    ScheduleSettingsVersion,
		Timezone:   "UTC",
		AlwaysOpen: true,
	}
}

func DefaultPrinterSettings() PrinterSettings {
	return PrinterSettings{
		Version:        PrinterSettingsVersion,
		Enabled:        true,
		Mode:           "kitchen",
		Copies:         1,
		Topic:          "kitchen_print_jobs",
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		PollInterval:   250 * time.Millisecond,
	}
}

func DefaultLoyaltySettings() LoyaltySettings {
	return LoyaltySettings{
		Version:                LoyaltySettingsVersion,
		EnforceNewCustomerOnly: true,
	}
}

func DefaultUpsellSettings() UpsellSettings {
	return UpsellSettings{
		Version:                UpsellSettingsVersion,
		Enabled:                true,
		StrategyTimeout:        300 * time.Millisecond,
		AITimeout:              1500 * time.Millisecond,
		SnackTerms:             []string{"lanche", "combo", "burger", "hamburguer", "sanduiche", "snack"},
		DrinkTerms:             []string{"bebida", "drink", "refrigerante", "suco", "cerveja", "beer"},
		SideTerms:              []string{"porcao", "porção", "batata", "fries", "acompanhamento", "side"},
		PreferredDrinkKeywords: []string{"coca", "refri", "guarana"},
		PreferredSideKeywords:  []string{"batata", "fritas", "fries"},
		Rules: []UpsellRule{
			{Category: "pizza", Keywords: []string{"refrigerante", "coca"}},
			{Category: "sobremesa", Keywords: []string{"cafe", "coffee"}},
			{Category: "dessert", Keywords: []string{"cafe", "coffee"}},
		},
	}
}

func DefaultKafkaSettings() KafkaSettings {
	return KafkaSettings{
		BrokerList:  "localhost:9092",
		OrderTopic:  "order_placed_events",
		StatusTopic: "order_status_events",
	}
}

func DefaultExportSettings() ExportSettings {
	return ExportSettings{
		OutputPath:  "output",
		Folder:      "orders",
		Destination: "local",
		Region:      "us-east-1",
	}
}

// ApplyDefaults fills every unset field with its default and upgrades
// unversioned settings to the current version.
func (cfg *Config) ApplyDefaults() {
	if cfg.Storage == "" {
		cfg.Storage = "memory"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Store.Channel == "" {
		cfg.Store.Channel = ChannelDigitalMenu
	}
	if cfg.Store.TenantID == "" {
		cfg.Store.TenantID = "default"
	}

	// Fees are only defaulted for unversioned settings so that a versioned
	// zero fee stays free.
	d := DefaultDeliverySettings()
	if cfg.Delivery.Version == 0 {
		cfg.Delivery.Version = d.Version
		if cfg.Delivery.BaseFee.IsZero() {
			cfg.Delivery.BaseFee = d.BaseFee
		}
		if cfg.Delivery.PricePerKm.IsZero() {
			cfg.Delivery.PricePerKm = d.PricePerKm
		}
	}
	if cfg.Delivery.MaxRadiusKm == 0 {
		cfg.Delivery.MaxRadiusKm = d.MaxRadiusKm
	}
	if cfg.Delivery.FeeLookupTimeout <= 0 {
		cfg.Delivery.FeeLookupTimeout = d.FeeLookupTimeout
	}

	s := DefaultScheduleSettings()
	if cfg.Schedule.Version == 0 {
		cfg.Schedule.Version = s.Version
		if len(cfg.Schedule.Days) == 0 {
			cfg.Schedule.AlwaysOpen = true
		}
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = s.Timezone
	}

	p := DefaultPrinterSettings()
	if cfg.Printer.Version == 0 {
		cfg.Printer.Version = p.Version
		cfg.Printer.Enabled = true
	}
	if cfg.Printer.Mode == "" {
		cfg.Printer.Mode = p.Mode
	}
	if cfg.Printer.Copies <= 0 {
		cfg.Printer.Copies = p.Copies
	}
	if cfg.Printer.Topic == "" {
		cfg.Printer.Topic = p.Topic
	}
	if cfg.Printer.InitialBackoff <= 0 {
		cfg.Printer.InitialBackoff = p.InitialBackoff
	}
	if cfg.Printer.MaxBackoff <= 0 {
		cfg.Printer.MaxBackoff = p.MaxBackoff
	}
	if cfg.Printer.PollInterval <= 0 {
		cfg.Printer.PollInterval = p.PollInterval
	}

	if cfg.Loyalty.Version == 0 {
		cfg.Loyalty = DefaultLoyaltySettings()
	}

	u := DefaultUpsellSettings()
	if cfg.Upsell.Version == 0 {
		cfg.Upsell.Version = u.Version
		cfg.Upsell.Enabled = true
	}
	if cfg.Upsell.StrategyTimeout <= 0 {
		cfg.Upsell.StrategyTimeout = u.StrategyTimeout
	}
	if cfg.Upsell.AITimeout <= 0 {
		cfg.Upsell.AITimeout = u.AITimeout
	}
	if len(cfg.Upsell.SnackTerms) == 0 {
		cfg.Upsell.SnackTerms = u.SnackTerms
	}
	if len(cfg.Upsell.DrinkTerms) == 0 {
		cfg.Upsell.DrinkTerms = u.DrinkTerms
	}
	if len(cfg.Upsell.SideTerms) == 0 {
		cfg.Upsell.SideTerms = u.SideTerms
	}
	if len(cfg.Upsell.PreferredDrinkKeywords) == 0 {
		cfg.Upsell.PreferredDrinkKeywords = u.PreferredDrinkKeywords
	}
	if len(cfg.Upsell.PreferredSideKeywords) == 0 {
		cfg.Upsell.PreferredSideKeywords = u.PreferredSideKeywords
	}
	if len(cfg.Upsell.Rules) == 0 {
		cfg.Upsell.Rules = u.Rules
	}

	k := DefaultKafkaSettings()
	if cfg.Kafka.BrokerList == "" {
		cfg.Kafka.BrokerList = k.BrokerList
	}
	if cfg.Kafka.OrderTopic == "" {
		cfg.Kafka.OrderTopic = k.OrderTopic
	}
	if cfg.Kafka.StatusTopic == "" {
		cfg.Kafka.StatusTopic = k.StatusTopic
	}

	e := DefaultExportSettings()
	if cfg.Export.OutputPath == "" {
		cfg.Export.OutputPath = e.OutputPath
	}
	if cfg.Export.Folder == "" {
		cfg.Export.Folder = e.Folder
	}
	if cfg.Export.Destination == "" {
		cfg.Export.Destination = e.Destination
	}
	if cfg.Export.Region == "" {
		cfg.Export.Region = e.Region
	}
}

// LoadConfig initializes and reads the configuration using Viper
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("config")
		viper.AddConfigPath(".")
		viper.SetConfigName("menuflow")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("menuflow")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			DecimalHookFunc(),
		)
	})
	if err := viper.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// DecimalHookFunc decodes strings and numbers into decimal.Decimal.
func DecimalHookFunc() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(decimal.Decimal{})
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if v == "" {
				return decimal.Zero, nil
			}
			return decimal.NewFromString(v)
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		}
		return data, nil
	}
}
