package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/km-arc/go-spiral/framework/errs"
)

// Repository is a dotted-key view over loaded configuration. Components
// read their own section from it without growing Config:
//
//	var mail MailConfig
//	err := repo.Unmarshal("mail", &mail)
type Repository struct {
	v *viper.Viper
}

// NewRepository wraps values in a Repository; nested maps become dotted keys.
func NewRepository(values map[string]any) *Repository {
	v := viper.New()
	for key, val := range values {
		v.Set(key, val)
	}
	return &Repository{v: v}
}

func (r *Repository) Get(key string) any                { return r.v.Get(key) }
func (r *Repository) String(key string) string          { return r.v.GetString(key) }
func (r *Repository) Int(key string) int                { return r.v.GetInt(key) }
func (r *Repository) Bool(key string) bool              { return r.v.GetBool(key) }
func (r *Repository) Duration(key string) time.Duration { return r.v.GetDuration(key) }

// Has reports whether key has a value from any source, defaults included.
func (r *Repository) Has(key string) bool { return r.v.IsSet(key) }

// Set overrides key for the rest of the process.
func (r *Repository) Set(key string, value any) { r.v.Set(key, value) }

// Unmarshal decodes the section under key into out.
func (r *Repository) Unmarshal(key string, out any) error {
	if !r.v.IsSet(key) {
		return errs.New(errs.Config, "config.Unmarshal", key, "section is not configured")
	}
	if err := r.v.UnmarshalKey(key, out); err != nil {
		return errs.Wrap(errs.Config, "config.Unmarshal", key, err)
	}
	return nil
}

// All returns every setting as a nested map.
func (r *Repository) All() map[string]any { return r.v.AllSettings() }
