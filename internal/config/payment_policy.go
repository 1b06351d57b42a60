package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PaymentPolicy is the hot-reloadable fee and refund policy.
type PaymentPolicy struct {
	PlatformFeeRate    float64
	ProcessorFeeRate   float64
	ProcessorFixedFee  int64
	RefundCutoffHours  int
	ReconcileLockTTLMs int64
}

func DefaultPaymentPolicy() PaymentPolicy {
	return PaymentPolicy{
		PlatformFeeRate:    0.05,
		ProcessorFeeRate:   0.029,
		ProcessorFixedFee:  30,
		RefundCutoffHours:  24,
		ReconcileLockTTLMs: 10_000,
	}
}

type PaymentPolicyHolder struct {
	current atomic.Value // holds PaymentPolicy
}

// NewStaticPaymentPolicyHolder returns a holder that never reloads.
func NewStaticPaymentPolicyHolder(policy PaymentPolicy) *PaymentPolicyHolder {
	holder := &PaymentPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// NewPaymentPolicyHolder reads payment_policy.yml (or the file named by
// PAYMENT_POLICY_PATH) and watches it for changes. A missing file yields the
// default policy.
func NewPaymentPolicyHolder(cfg Config, log *zap.Logger) (*PaymentPolicyHolder, error) {
	v := viper.New()

	if cfg.Payment.PolicyPath != "" {
		v.SetConfigFile(cfg.Payment.PolicyPath)
	} else {
		v.SetConfigName("payment_policy")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/huddle")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HUDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPaymentPolicy()
	v.SetDefault("payment.platformFeeRate", defaults.PlatformFeeRate)
	v.SetDefault("payment.processorFeeRate", defaults.ProcessorFeeRate)
	v.SetDefault("payment.processorFixedFee", defaults.ProcessorFixedFee)
	v.SetDefault("payment.refundCutoffHours", defaults.RefundCutoffHours)
	v.SetDefault("payment.reconcileLockTtlMs", defaults.ReconcileLockTTLMs)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	policy := readPaymentPolicy(v)
	if err := validatePaymentPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPaymentPolicyHolder(policy)
	if !fileLoaded {
		log.Info("payment policy file not found, using defaults")
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated := readPaymentPolicy(v)
		if err := validatePaymentPolicy(updated); err != nil {
			log.Warn("invalid payment policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("payment policy reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *PaymentPolicyHolder) Get() PaymentPolicy {
	return h.current.Load().(PaymentPolicy)
}

// readPaymentPolicy reads leaf keys one by one; viper does not merge defaults
// into a partially specified parent map.
func readPaymentPolicy(v *viper.Viper) PaymentPolicy {
	return PaymentPolicy{
		PlatformFeeRate:    v.GetFloat64("payment.platformFeeRate"),
		ProcessorFeeRate:   v.GetFloat64("payment.processorFeeRate"),
		ProcessorFixedFee:  v.GetInt64("payment.processorFixedFee"),
		RefundCutoffHours:  v.GetInt("payment.refundCutoffHours"),
		ReconcileLockTTLMs: v.GetInt64("payment.reconcileLockTtlMs"),
	}
}

func validatePaymentPolicy(p PaymentPolicy) error {
	if p.PlatformFeeRate < 0 || p.PlatformFeeRate >= 1 {
		return errors.New("payment.platformFeeRate must be in [0, 1)")
	}
	if p.ProcessorFeeRate < 0 || p.ProcessorFeeRate >= 1 {
		return errors.New("payment.processorFeeRate must be in [0, 1)")
	}
	if p.ProcessorFixedFee < 0 {
		return errors.New("payment.processorFixedFee cannot be negative")
	}
	if p.RefundCutoffHours < 0 {
		return errors.New("payment.refundCutoffHours cannot be negative")
	}
	return nil
}
