package parser

import "time"

// Option configures a Decoder.
type Option func(*options)

type options struct {
	// decimalFloats keeps fractional numbers exact as decimal.Decimal.
	decimalFloats bool

	// location applies to timestamps written without an offset.
	location *time.Location
}

func newOptions(opts []Option) options {
	o := options{location: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDecimalFloats decodes fractional property values as decimal.Decimal
// instead of float64.
func WithDecimalFloats() Option {
	return func(o *options) {
		o.decimalFloats = true
	}
}

// WithLocation sets the zone assumed for timestamps that carry no offset.
// The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}
