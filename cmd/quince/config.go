package main

import (
	"crypto/tls"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	quic "github.com/quince-io/quince"
)

// fileConfig is the shape of the optional --config YAML file. Any field
// left unset keeps newConfig's default. These fields have no CLI flag
// counterparts; they are set only through this file.
type fileConfig struct {
	MaxIdleTimeout    time.Duration `yaml:"max_idle_timeout"`
	MaxUDPPayloadSize uint64        `yaml:"max_udp_payload_size"`
	InitialMaxData    uint64        `yaml:"initial_max_data"`
	RequireRetry      bool          `yaml:"require_retry"`
	TokenSecret       string        `yaml:"token_secret"`
	EnableECN         bool          `yaml:"enable_ecn"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	if path == "" {
		return &fileConfig{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// newConfig builds a quic.Config from a loaded YAML file layered with
// conservative defaults, matching the teacher's inline TLS setup but
// pulling everything else from fc.
func newConfig(fc *fileConfig) *quic.Config {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{"quince"},
		InsecureSkipVerify: false,
	}
	config := quic.NewConfig(tlsConfig)
	if fc.MaxIdleTimeout > 0 {
		config.Params.MaxIdleTimeout = fc.MaxIdleTimeout
	}
	if fc.MaxUDPPayloadSize > 0 {
		config.Params.MaxUDPPayloadSize = fc.MaxUDPPayloadSize
	}
	if fc.InitialMaxData > 0 {
		config.Params.InitialMaxData = fc.InitialMaxData
	}
	config.RequireRetry = fc.RequireRetry
	if fc.TokenSecret != "" {
		config.TokenSecret = []byte(fc.TokenSecret)
	}
	config.EnableECN = fc.EnableECN
	return config
}

func serverName(s string) string {
	colon := strings.LastIndex(s, ":")
	if colon > 0 {
		bracket := strings.LastIndex(s, "]")
		if colon > bracket {
			return s[:colon]
		}
	}
	return s
}
