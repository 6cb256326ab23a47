package generator

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/sampling"
)

// ErrInvalidConfig is returned when generation parameters are unusable.
var ErrInvalidConfig = errors.New("invalid generator config")

// Option is a weighted value read from the tables file.
type Option = sampling.Option[string]

// Config drives the synthetic data generator. Every table is data, not
// code, so alternative distributions can be loaded from YAML.
type Config struct {
	NumUsers  int       `yaml:"num_users" validate:"gt=0"`
	Days      int       `yaml:"days" validate:"gt=0"`
	StartDate time.Time `yaml:"start_date"`
	Seed      int64     `yaml:"seed"`

	Platforms     []Option  `yaml:"platforms" validate:"min=1"`
	AppVersions   []Option  `yaml:"app_versions" validate:"min=1"`
	SignupMethods []Option  `yaml:"signup_methods" validate:"min=1"`
	HourWeights   []float64 `yaml:"hour_weights" validate:"len=24"`

	ParetoShape float64 `yaml:"pareto_shape" validate:"gt=0"`
	ParetoScale float64 `yaml:"pareto_scale" validate:"gt=0"`

	Funnel  FunnelConfig      `yaml:"funnel"`
	Session SessionConfig     `yaml:"session"`
	Ledger  TransactionConfig `yaml:"transactions"`
}

// FunnelConfig holds the conditional signup funnel rates.
type FunnelConfig struct {
	SubmitRate   float64 `yaml:"submit_rate" validate:"gte=0,lte=1"`
	CompleteRate float64 `yaml:"complete_rate" validate:"gte=0,lte=1"`
	VerifyRate   float64 `yaml:"verify_rate" validate:"gte=0,lte=1"`
}

// SessionConfig holds the daily session parameters.
type SessionConfig struct {
	WeekendBoost        float64 `yaml:"weekend_boost" validate:"gt=0"`
	MinScreens          int     `yaml:"min_screens" validate:"gte=1"`
	MaxScreens          int     `yaml:"max_screens" validate:"gtefield=MinScreens"`
	TransferRate        float64 `yaml:"transfer_rate" validate:"gte=0,lte=1"`
	TransferSuccessRate float64 `yaml:"transfer_success_rate" validate:"gte=0,lte=1"`
	QRRate              float64 `yaml:"qr_rate" validate:"gte=0,lte=1"`
	ChargeRate          float64 `yaml:"charge_rate" validate:"gte=0,lte=1"`
	BannerRate          float64 `yaml:"banner_rate" validate:"gte=0,lte=1"`
	PushRate            float64 `yaml:"push_rate" validate:"gte=0,lte=1"`
	PushClickRate       float64 `yaml:"push_click_rate" validate:"gte=0,lte=1"`
}

// AmountModel describes how one transaction type draws its amount.
// Either Choices is set, or MuLog/SigmaLog describe a log-normal draw.
type AmountModel struct {
	MuLog    float64 `yaml:"mu_log"`
	SigmaLog float64 `yaml:"sigma_log" validate:"gte=0"`
	Round    int64   `yaml:"round" validate:"gte=0"`
	Min      int64   `yaml:"min" validate:"gt=0"`
	Max      int64   `yaml:"max" validate:"gtefield=Min"`
	Choices  []int64 `yaml:"choices"`
}

// TransactionConfig holds the ledger parameters.
type TransactionConfig struct {
	BaseDailyVolume  float64                `yaml:"base_daily_volume" validate:"gte=0"`
	DailyGrowth      float64                `yaml:"daily_growth" validate:"gte=0"`
	WeekendFactor    float64                `yaml:"weekend_factor" validate:"gt=0"`
	Noise            float64                `yaml:"noise" validate:"gte=0,lt=1"`
	Types            []Option               `yaml:"types" validate:"min=1"`
	Statuses         []Option               `yaml:"statuses" validate:"min=1"`
	Amounts          map[string]AmountModel `yaml:"amounts" validate:"dive"`
	TransferFee      int64                  `yaml:"transfer_fee" validate:"gte=0"`
	TransferFeeFrom  int64                  `yaml:"transfer_fee_from" validate:"gte=0"`
	WithdrawFee      int64                  `yaml:"withdraw_fee" validate:"gte=0"`
	WithdrawFeeBelow int64                  `yaml:"withdraw_fee_below" validate:"gte=0"`
}

// DefaultConfig returns the QuickPay baseline distributions.
func DefaultConfig() Config {
	return Config{
		NumUsers:  10000,
		Days:      90,
		StartDate: time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC),
		Seed:      42,
		Platforms: []Option{
			{Value: "ios", Weight: 0.55},
			{Value: "android", Weight: 0.40},
			{Value: "web", Weight: 0.05},
		},
		AppVersions: []Option{
			{Value: "3.2.1", Weight: 0.50},
			{Value: "3.2.0", Weight: 0.30},
			{Value: "3.1.9", Weight: 0.15},
			{Value: "3.1.8", Weight: 0.05},
		},
		SignupMethods: []Option{
			{Value: "phone", Weight: 3},
			{Value: "email", Weight: 1},
			{Value: "social_kakao", Weight: 1},
			{Value: "social_apple", Weight: 1},
		},
		HourWeights: []float64{
			0.02, 0.01, 0.01, 0.01, 0.01, 0.02,
			0.03, 0.05, 0.07, 0.08, 0.07, 0.06,
			0.08, 0.07, 0.06, 0.05, 0.05, 0.06,
			0.07, 0.06, 0.05, 0.04, 0.03, 0.02,
		},
		ParetoShape: 1.5,
		ParetoScale: 0.1,
		Funnel: FunnelConfig{
			SubmitRate:   0.85,
			CompleteRate: 0.90,
			VerifyRate:   0.80,
		},
		Session: SessionConfig{
			WeekendBoost:        1.2,
			MinScreens:          2,
			MaxScreens:          8,
			TransferRate:        0.40,
			TransferSuccessRate: 0.95,
			QRRate:              0.20,
			ChargeRate:          0.15,
			BannerRate:          0.10,
			PushRate:            0.30,
			PushClickRate:       0.40,
		},
		Ledger: TransactionConfig{
			BaseDailyVolume: 3000,
			DailyGrowth:     30,
			WeekendFactor:   1.15,
			Noise:           0.15,
			Types: []Option{
				{Value: "transfer", Weight: 0.50},
				{Value: "qr_payment", Weight: 0.25},
				{Value: "charge", Weight: 0.15},
				{Value: "withdraw", Weight: 0.10},
			},
			Statuses: []Option{
				{Value: "completed", Weight: 0.93},
				{Value: "failed", Weight: 0.04},
				{Value: "pending", Weight: 0.02},
				{Value: "cancelled", Weight: 0.01},
			},
			Amounts: map[string]AmountModel{
				"transfer":   {MuLog: 10.5, SigmaLog: 1.2, Round: 1000, Min: 1000, Max: 5_000_000},
				"qr_payment": {MuLog: 8.8, SigmaLog: 0.8, Round: 100, Min: 1000, Max: 500_000},
				"charge":     {Min: 10_000, Max: 500_000, Choices: []int64{10_000, 30_000, 50_000, 100_000, 200_000, 500_000}},
				"withdraw":   {Min: 10_000, Max: 500_000, Choices: []int64{10_000, 50_000, 100_000, 200_000, 500_000}},
			},
			TransferFee:      500,
			TransferFeeFrom:  100_000,
			WithdrawFee:      500,
			WithdrawFeeBelow: 100_000,
		},
	}
}

// LoadConfig reads a YAML tables file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read generator config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse generator config: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges and weight tables. It must pass before any
// record is produced.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrInvalidConfig)
	}

	tables := map[string][]Option{
		"platforms":      c.Platforms,
		"app_versions":   c.AppVersions,
		"signup_methods": c.SignupMethods,
		"types":          c.Ledger.Types,
		"statuses":       c.Ledger.Statuses,
	}
	for name, opts := range tables {
		if _, err := sampling.NewWeighted(opts); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}
	if _, err := sampling.NewWeighted(hourOptions(c.HourWeights)); err != nil {
		return fmt.Errorf("%w: hour_weights: %v", ErrInvalidConfig, err)
	}

	if err := checkValues("platforms", c.Platforms, domain.Platforms); err != nil {
		return err
	}
	if err := checkValues("types", c.Ledger.Types, domain.TransactionTypes); err != nil {
		return err
	}
	if err := checkValues("statuses", c.Ledger.Statuses, domain.TransactionStatuses); err != nil {
		return err
	}

	for _, opt := range c.Ledger.Types {
		model, ok := c.Ledger.Amounts[opt.Value]
		if !ok {
			return fmt.Errorf("%w: no amount model for transaction type %q", ErrInvalidConfig, opt.Value)
		}
		for _, v := range model.Choices {
			if v < model.Min || v > model.Max {
				return fmt.Errorf("%w: amount choice %d for %q outside [%d, %d]", ErrInvalidConfig, v, opt.Value, model.Min, model.Max)
			}
		}
	}
	return nil
}

func checkValues[T ~string](table string, opts []Option, allowed []T) error {
	for _, opt := range opts {
		known := false
		for _, a := range allowed {
			if string(a) == opt.Value {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %s: unknown value %q", ErrInvalidConfig, table, opt.Value)
		}
	}
	return nil
}

func hourOptions(weights []float64) []sampling.Option[int] {
	opts := make([]sampling.Option[int], len(weights))
	for h, w := range weights {
		opts[h] = sampling.Option[int]{Value: h, Weight: w}
	}
	return opts
}
