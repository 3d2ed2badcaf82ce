// Package profile loads connection profiles for the buckets service,
// either from a YAML document or from the MANTA_* environment the
// original tooling used.
//
// Usage:
//
//	p, err := profile.Load("~/.config/manta/prod.yaml")
//	if err != nil { ... }
//	if err := p.Validate(); err != nil { ... }
package profile

import (
	"fmt"
	"os"
	"strconv"

	"go.yaml.in/yaml/v3"
)

// Profile identifies a service endpoint and the key used against it.
type Profile struct {
	// URL is the service base URL.
	URL string `yaml:"url"`

	// Account is the account (login) name.
	Account string `yaml:"account"`

	// KeyID identifies the registered public key,
	// e.g. "/myaccount/keys/<fingerprint>".
	KeyID string `yaml:"key_id"`

	// KeyFile is the path to the matching private key. Empty means
	// unsigned requests.
	KeyFile string `yaml:"key_file"`

	// Insecure disables TLS certificate verification.
	Insecure bool `yaml:"insecure"`
}

// Load reads a YAML profile from path.
func Load(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML profile document.
func Parse(raw []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	return &p, nil
}

// FromEnv builds a profile from the MANTA_* environment variables:
// MANTA_URL, MANTA_USER, MANTA_KEY_ID, MANTA_KEY_FILE, and
// MANTA_TLS_INSECURE. Unset variables leave zero values.
func FromEnv() *Profile {
	insecure, _ := strconv.ParseBool(os.Getenv("MANTA_TLS_INSECURE"))
	return &Profile{
		URL:      os.Getenv("MANTA_URL"),
		Account:  os.Getenv("MANTA_USER"),
		KeyID:    os.Getenv("MANTA_KEY_ID"),
		KeyFile:  os.Getenv("MANTA_KEY_FILE"),
		Insecure: insecure,
	}
}

// Merge fills p's empty fields from fallback, so a file-based profile
// can be completed from the environment.
func (p *Profile) Merge(fallback *Profile) {
	if fallback == nil {
		return
	}
	if p.URL == "" {
		p.URL = fallback.URL
	}
	if p.Account == "" {
		p.Account = fallback.Account
	}
	if p.KeyID == "" {
		p.KeyID = fallback.KeyID
	}
	if p.KeyFile == "" {
		p.KeyFile = fallback.KeyFile
	}
	if !p.Insecure {
		p.Insecure = fallback.Insecure
	}
}

// Validate checks the fields every connection needs. A KeyID without a
// KeyFile (or the reverse) is rejected since a signature needs both.
func (p *Profile) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("profile: url is required")
	}
	if p.Account == "" {
		return fmt.Errorf("profile: account is required")
	}
	if (p.KeyID == "") != (p.KeyFile == "") {
		return fmt.Errorf("profile: key_id and key_file must be set together")
	}
	return nil
}
