package config

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
)

// Validate checks structural validity: value ranges, enum fields, and
// glob syntax. Filesystem checks live in ValidateDeep.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("server.transport", c.Server.Transport, validTransport),
		c.validatePort(),
		c.validateIgnores(),
	)
}

// ValidateDeep adds I/O checks on top of Validate: the vault root and
// the configured source paths must be usable before a process starts.
func (c *Config) ValidateDeep() error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		criterio.Run("vault", c.Vault, isExistingDirectory),
		criterio.Run("credentials", c.Credentials, isExistingFile),
		criterio.Run("watch.mail.maildir", c.Watch.Mail.Maildir, isDirectoryOrNotExist),
		criterio.Run("watch.drop.inbox", c.Watch.Drop.Inbox, isDirectoryOrNotExist),
	)
}

// isExistingFile validates that a path, when set, is a readable file.
// A configured-but-missing credentials file is a startup failure, not
// a retryable one.
func isExistingFile(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory, not a file")
	}
	return nil
}

func validTransport(transport string) error {
	switch transport {
	case TransportHTTP, TransportStdio:
		return nil
	default:
		return fmt.Errorf("must be %q or %q, got %q", TransportHTTP, TransportStdio, transport)
	}
}

func (c *Config) validatePort() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return criterio.NewFieldErrors("server.port",
			fmt.Errorf("must be between 1 and 65535, got %d", c.Server.Port))
	}
	return nil
}

func (c *Config) validateIgnores() error {
	var errs criterio.FieldErrorsBuilder
	for i, pat := range c.Watch.Drop.Ignores {
		if !doublestar.ValidatePattern(pat) {
			errs = errs.Append(fmt.Sprintf("watch.drop.ignores[%d]", i), fmt.Errorf("invalid glob pattern %q", pat))
		}
	}
	return errs.ToError()
}

func isExistingDirectory(path string) error {
	if path == "" {
		return fmt.Errorf("is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
