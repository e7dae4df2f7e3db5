package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the struct tags and the rules that depend on the selected
// backends.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Storage.Backend == "local" && cfg.Storage.Path == "" {
		return errors.New("storage.path: required for the local backend")
	}
	if cfg.Storage.Backend == "s3" && cfg.Storage.S3.Bucket == "" {
		return errors.New("storage.s3.bucket: required for the s3 backend")
	}
	if cfg.Tree.Backend == "mongo" && (cfg.Mongo.URI == "" || cfg.Mongo.Database == "") {
		return errors.New("mongo.uri and mongo.database: required for the mongo tree backend")
	}
	return nil
}

// formatValidationError reports the first failing field. Values are left out
// so secrets never end up in logs.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag", e.Namespace(), e.Tag())
	}
	return err
}
