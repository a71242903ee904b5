package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Channel  ChannelConfig  `yaml:"channel"`
	Station  StationConfig  `yaml:"station"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// DispatchConfig holds offer coordinator and dispatch pool configuration.
// The offer window defaults to 90 seconds when unset.
type DispatchConfig struct {
	OfferWindow         time.Duration `yaml:"offer_window"`
	ServiceRadiusKm     float64       `yaml:"service_radius_km"`
	MaxAttempts         int           `yaml:"max_attempts"`
	Concurrency         int           `yaml:"concurrency"`
	PersistAttempts     int           `yaml:"persist_attempts"`
	PersistBackoff      time.Duration `yaml:"persist_backoff"`
	StaleVendorCutoff   time.Duration `yaml:"stale_vendor_cutoff"`
	StaleVendorInterval time.Duration `yaml:"stale_vendor_interval"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
}

// ChannelConfig holds vendor push channel settings
type ChannelConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
}

// StationConfig holds station agent settings
type StationConfig struct {
	ServerURL        string        `yaml:"server_url"`
	APIBaseURL       string        `yaml:"api_base_url"`
	VendorID         string        `yaml:"vendor_id"`
	BusinessName     string        `yaml:"business_name"`
	Token            string        `yaml:"token"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	MessageTimeout   time.Duration `yaml:"message_timeout"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
	StableWindow     time.Duration `yaml:"stable_window"`
	MaxOfferPrice    float64       `yaml:"max_offer_price"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateAPIConfig checks the fields the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	return c.validateRabbitMQ()
}

// ValidateDispatchConfig checks the fields the dispatch service needs
func (c *Config) ValidateDispatchConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Dispatch.OfferWindow <= 0 {
		return fmt.Errorf("dispatch offer_window must be greater than 0")
	}

	if c.Dispatch.ServiceRadiusKm <= 0 {
		return fmt.Errorf("dispatch service_radius_km must be greater than 0")
	}

	if c.Dispatch.MaxAttempts <= 0 {
		return fmt.Errorf("dispatch max_attempts must be greater than 0")
	}

	if c.Dispatch.Concurrency <= 0 {
		return fmt.Errorf("dispatch concurrency must be greater than 0")
	}

	return nil
}

// ValidateStationConfig checks the fields the station agent needs
func (c *Config) ValidateStationConfig() error {
	if c.Station.ServerURL == "" {
		return fmt.Errorf("station server_url is required")
	}

	if c.Station.APIBaseURL == "" {
		return fmt.Errorf("station api_base_url is required")
	}

	if c.Station.VendorID == "" {
		return fmt.Errorf("station vendor_id is required")
	}

	if c.Station.ReconnectInitial <= 0 {
		return fmt.Errorf("station reconnect_initial must be greater than 0")
	}

	if c.Station.ReconnectMax < c.Station.ReconnectInitial {
		return fmt.Errorf("station reconnect_max must be at least reconnect_initial")
	}

	if c.Station.BreakerThreshold <= 0 {
		return fmt.Errorf("station breaker_threshold must be greater than 0")
	}

	if c.Station.BreakerCooldown <= 0 {
		return fmt.Errorf("station breaker_cooldown must be greater than 0")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
