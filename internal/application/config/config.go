package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/webrtc/v4"
)

type Config struct {
	Debug      bool   `env:"DEBUG" envDefault:"false"`
	Port       string `env:"PORT" envDefault:"3000"`
	MetricPort string `env:"METRIC_PORT" envDefault:"9090"`

	// AllowedOrigin is the single origin allowed to open websocket
	// connections and call the HTTP API. Ignored when Debug is set.
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`

	STUNURLs []string `env:"STUN_URLS" envDefault:"stun:stun.l.google.com:19302"`

	StunServer webrtc.ICEServer

	CoturnServer CoturnConfig
}

type CoturnConfig struct {
	Host string `env:"COTURN_HOST"`

	// Secret is coturn's static-auth-secret, used to mint time-limited
	// TURN credentials for the frontend.
	Secret string `env:"COTURN_SECRET"`

	CredentialTTL time.Duration `env:"TURN_CREDENTIAL_TTL" envDefault:"1h"`
}

func (c CoturnConfig) Enabled() bool {
	return c.Host != "" && c.Secret != ""
}

func (c CoturnConfig) URLs() []string {
	return []string{
		fmt.Sprintf("turn:%s?transport=udp", c.Host),
		fmt.Sprintf("turn:%s?transport=tcp", c.Host),
	}
}

func New() (*Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	c.StunServer = webrtc.ICEServer{URLs: c.STUNURLs}

	return &c, nil
}
