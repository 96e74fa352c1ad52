package settings

// Package settings holds the endpoint configuration for the four remote
// collaborators. The presentation layer loads it from YAML and hands the
// individual sections to the client constructors.

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type StoreSettings struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type GatewaySettings struct {
	BaseURL string `yaml:"base_url"`
}

type RegistrySettings struct {
	BaseURL string `yaml:"base_url"`
}

type FilesSettings struct {
	BaseURL string `yaml:"base_url"`
}

type Settings struct {
	Store    *StoreSettings    `yaml:"store,omitempty"`
	Gateway  *GatewaySettings  `yaml:"gateway,omitempty"`
	Registry *RegistrySettings `yaml:"registry,omitempty"`
	Files    *FilesSettings    `yaml:"files,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		Store:    &StoreSettings{},
		Gateway:  &GatewaySettings{},
		Registry: &RegistrySettings{},
		Files:    &FilesSettings{},
	}
}

func NewSettingsFromYAML(r io.Reader) (*Settings, error) {
	settings := NewSettings()
	if err := yaml.NewDecoder(r).Decode(settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	return settings, nil
}

// Validate checks that every endpoint the core needs is configured.
func (s *Settings) Validate() error {
	if s.Store == nil || s.Store.BaseURL == "" {
		return errors.New("store.base_url is required")
	}
	if s.Gateway == nil || s.Gateway.BaseURL == "" {
		return errors.New("gateway.base_url is required")
	}
	if s.Registry == nil || s.Registry.BaseURL == "" {
		return errors.New("registry.base_url is required")
	}
	if s.Files == nil || s.Files.BaseURL == "" {
		return errors.New("files.base_url is required")
	}
	return nil
}
