package models

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsOnEmptyConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, ChannelDigitalMenu, cfg.Store.Channel)
	assert.Equal(t, DeliverySettingsVersion, cfg.Delivery.Version)
	assert.True(t, cfg.Delivery.BaseFee.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 2*time.Second, cfg.Delivery.FeeLookupTimeout)
	assert.True(t, cfg.Schedule.AlwaysOpen)
	assert.True(t, cfg.Printer.Enabled)
	assert.Equal(t, "kitchen_print_jobs", cfg.Printer.Topic)
	assert.True(t, cfg.Loyalty.EnforceNewCustomerOnly)
	assert.True(t, cfg.Upsell.Enabled)
	assert.NotEmpty(t, cfg.Upsell.DrinkTerms)
	assert.Equal(t, "order_status_events", cfg.Kafka.StatusTopic)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Delivery: DeliverySettings{
			Version:               DeliverySettingsVersion,
			BaseFee:               decimal.NewFromFloat(7.5),
			FreeShippingThreshold: decimal.NewFromInt(80),
			FeeLookupTimeout:      time.Second,
		},
		Schedule: ScheduleSettings{
			Version: ScheduleSettingsVersion,
			Days:    []DaySchedule{{Weekday: "monday", Open: "10:00", Close: "12:00"}},
		},
		Printer: PrinterSettings{Version: PrinterSettingsVersion, Enabled: false},
	}
	cfg.ApplyDefaults()

	assert.True(t, cfg.Delivery.BaseFee.Equal(decimal.NewFromFloat(7.5)))
	assert.True(t, cfg.Delivery.FreeShippingThreshold.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, time.Second, cfg.Delivery.FeeLookupTimeout)
	assert.False(t, cfg.Schedule.AlwaysOpen)
	assert.False(t, cfg.Printer.Enabled)
}

func TestApplyDefaultsKeepsVersionedZeroFee(t *testing.T) {
	cfg := Config{Delivery: DeliverySettings{Version: DeliverySettingsVersion}}
	cfg.ApplyDefaults()

	assert.True(t, cfg.Delivery.BaseFee.IsZero())
	assert.True(t, cfg.Delivery.PricePerKm.IsZero())
	assert.Equal(t, 2*time.Second, cfg.Delivery.FeeLookupTimeout)
}

func TestDecimalHookFunc(t *testing.T) {
	hook := DecimalHookFunc()
	target := reflect.TypeOf(decimal.Decimal{})

	tests := []struct {
		in   interface{}
		want string
	}{
		{"12.50", "12.5"},
		{"", "0"},
		{float64(3.25), "3.25"},
		{int(7), "7"},
	}
	for _, tt := range tests {
		out, err := hook(reflect.TypeOf(tt.in), target, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.(decimal.Decimal).String())
	}

	out, err := hook(reflect.TypeOf("x"), reflect.TypeOf(""), "x")
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}
