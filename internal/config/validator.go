package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gaepo/sheetlogin/internal/domain/table"
)

// RegisterCustomValidators registers sheetlogin-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// duration: a time.ParseDuration string that is not negative
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// Validate validates the Config using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateCredentials(); err != nil {
		return err
	}

	if err := c.validateColumns(); err != nil {
		return err
	}

	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("server: tls_cert_file and tls_key_file must be set together")
	}

	return nil
}

// validateCredentials ensures at most one credential kind is configured and
// that credentials are only given to the sheets source.
func (c *Config) validateCredentials() error {
	n := 0
	for _, s := range []string{c.Source.CredentialsFile, c.Source.CredentialsJSON, c.Source.APIKey} {
		if s != "" {
			n++
		}
	}
	if n > 1 {
		return errors.New("source: specify one of credentials_file, credentials_json or api_key")
	}
	if n == 1 && c.Source.Type == SourceCSV {
		return errors.New("source: credentials are only used by the sheets source")
	}
	if c.Source.Range != "" && c.Source.Type == SourceCSV {
		return errors.New("source: range is only used by the sheets source")
	}
	return nil
}

// validateColumns rejects an ID column and name column that are the same
// after whitespace normalization.
func (c *Config) validateColumns() error {
	id := table.NormalizeColumn(c.Table.IDColumn)
	name := table.NormalizeColumn(c.Table.NameColumn)
	if id == name {
		return fmt.Errorf("table: id_column and name_column must differ (both %q)", id)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "duration":
		return fmt.Sprintf("%s must be a duration like \"30s\" or \"5m\"", field)
	case "file":
		return fmt.Sprintf("%s must be an existing file", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
