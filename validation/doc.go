// Package validation checks configuration values before a run starts.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Both report failures as
// CONFIGURATION_ERROR application errors listing every offending field.
//
// # Struct Tag Validation
//
//	type Options struct {
//	    ID      string `mapstructure:"id" validate:"required"`
//	    AntsSeg string `mapstructure:"ants_seg" validate:"oneof=quick fusion"`
//	}
//	err := validation.Validate(opts)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Range("ants_segN", n, 2, len(atlases))
//	err := v.Validate()
package validation
