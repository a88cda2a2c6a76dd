package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NumberingDefaults seeds a tenant's sequence row the first time a type is numbered.
type NumberingDefaults struct {
	Prefix string `mapstructure:"prefix"`
	Width  int    `mapstructure:"width"`
}

// Terms are the tenant-independent defaults applied when documents are finalized.
type Terms struct {
	InvoicePaymentDays int                          `mapstructure:"invoicePaymentDays"`
	QuoteValidityDays  int                          `mapstructure:"quoteValidityDays"`
	Numbering          map[string]NumberingDefaults `mapstructure:"numbering"`
}

func DefaultTerms() Terms {
	return Terms{
		InvoicePaymentDays: 30,
		QuoteValidityDays:  30,
		Numbering: map[string]NumberingDefaults{
			"invoice": {Prefix: "INV-{YYYY}-", Width: 5},
			"quote":   {Prefix: "QUO-{YYYY}-", Width: 5},
		},
	}
}

// NumberingFor returns the defaults for a document type, falling back to a plain prefix.
func (t Terms) NumberingFor(docType string) NumberingDefaults {
	if d, ok := t.Numbering[docType]; ok && d.Width > 0 {
		return d
	}
	return NumberingDefaults{Prefix: strings.ToUpper(docType) + "-", Width: 5}
}

type TermsHolder struct {
	current atomic.Value // holds Terms
}

// NewStaticTermsHolder returns a holder that never reloads.
func NewStaticTermsHolder(terms Terms) *TermsHolder {
	h := &TermsHolder{}
	h.current.Store(terms)
	return h
}

func NewTermsHolder(log *zap.Logger) (*TermsHolder, error) {
	log = log.Named("config.terms")
	v := viper.New()

	v.SetConfigName("terms")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/docledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOCLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no terms file: run on defaults, nothing to watch
		return NewStaticTermsHolder(DefaultTerms()), nil
	}

	terms, err := decodeTerms(v)
	if err != nil {
		return nil, err
	}
	holder := NewStaticTermsHolder(terms)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeTerms(v)
		if err != nil {
			log.Warn("terms reload ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("terms reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *TermsHolder) Get() Terms {
	return h.current.Load().(Terms)
}

// decodeTerms overlays the file onto the defaults so partial files stay valid.
func decodeTerms(v *viper.Viper) (Terms, error) {
	terms := DefaultTerms()
	if err := v.UnmarshalKey("terms", &terms); err != nil {
		return Terms{}, err
	}
	if err := validateTerms(terms); err != nil {
		return Terms{}, err
	}
	return terms, nil
}

func validateTerms(t Terms) error {
	if t.InvoicePaymentDays < 0 {
		return errors.New("terms.invoicePaymentDays cannot be negative")
	}
	if t.QuoteValidityDays < 0 {
		return errors.New("terms.quoteValidityDays cannot be negative")
	}
	for docType, n := range t.Numbering {
		if n.Width < 1 || n.Width > 12 {
			return fmt.Errorf("terms.numbering.%s.width must be between 1 and 12", docType)
		}
	}
	return nil
}
