package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validation tags
// plus the cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			first := errs[0]
			return fmt.Errorf("field %q failed validation rule %q", first.Namespace(), first.Tag())
		}
		return err
	}

	if err := cfg.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if cfg.Upload.MaxUploadBytes == 0 {
		return fmt.Errorf("upload: max_upload_bytes must be positive")
	}

	return nil
}
