// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Redis         RedisConfig        `mapstructure:"redis"`
	SMTP          SMTPConfig         `mapstructure:"smtp"`
	Push          PushConfig         `mapstructure:"push"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SMTPConfig holds mail relay settings. SendTimeout bounds a whole send
// attempt; ConnectTimeout bounds dialing and the server greeting.
type SMTPConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	From           string `mapstructure:"from"`
	UseTLS         bool   `mapstructure:"use_tls"`
	SendTimeoutMS  int    `mapstructure:"send_timeout"`    // milliseconds
	ConnectTimeout int    `mapstructure:"connect_timeout"` // milliseconds
}

// Addr returns the relay host:port.
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SendTimeout returns the send timeout as a duration.
func (s SMTPConfig) SendTimeout() time.Duration {
	return time.Duration(s.SendTimeoutMS) * time.Millisecond
}

// DialTimeout returns the connect timeout as a duration.
func (s SMTPConfig) DialTimeout() time.Duration {
	return time.Duration(s.ConnectTimeout) * time.Millisecond
}

// PushConfig holds the Web Push VAPID key pair and the contact address
// reported to push relays.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"`
	TTL             int    `mapstructure:"ttl"` // seconds
}

// NotificationConfig holds the staff recipient for order alert emails.
type NotificationConfig struct {
	StaffEmail string `mapstructure:"staff_email"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
