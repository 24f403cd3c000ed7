package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks field constraints and cross-field rules, and resolves the
// display timezone. It is run once by Load; afterwards the config is
// treated as read-only.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	for i, acct := range c.Accounts {
		hasDAV := acct.CalDAV != nil || acct.CardDAV != nil
		basic := acct.Auth.Basic != nil
		oauth := acct.Auth.OAuth != nil
		if basic && oauth {
			return fmt.Errorf("%w: account %d (%s): auth must set either basic or oauth, not both", ErrInvalid, i, acct.Name)
		}
		if hasDAV && !basic && !oauth {
			return fmt.Errorf("%w: account %d (%s): caldav/carddav requires auth.basic or auth.oauth", ErrInvalid, i, acct.Name)
		}
	}

	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return fmt.Errorf("%w: basic_auth needs both username and password", ErrInvalid)
	}

	loc, err := time.LoadLocation(c.Settings.Timezone)
	if err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Settings.Timezone, err)
	}
	c.loc = loc

	return nil
}

// ApplyEnv overlays environment variables on top of the file config.
// WALLDASH_LISTEN wins over PORT, which only sets the port on all interfaces.
func (c *Config) ApplyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Listen = ":" + port
	}
	if listen := os.Getenv("WALLDASH_LISTEN"); listen != "" {
		c.Listen = listen
	}
}
