package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	MongoDB       MongoDBConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWT           JWTConfig
	SMTP          SMTPConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	ProcessorPort int
}

type ServerConfig struct {
	Port        string
	Environment string
	Version     string
}

type MongoDBConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	MinPoolSize uint64
	MaxRetries  int
	TLSCAFile   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	StatsTTL int // in seconds
}

type KafkaConfig struct {
	Brokers         []string
	ProducerTimeout int
	ConsumerGroup   string
	ClientID        string
	Username        string
	Password        string
	SSL             bool
	SASLMechanism   string
	Topics          KafkaTopics
}

type KafkaTopics struct {
	Audit         string
	EmailSent     string
	EmailInbound  string
	ActivityEvent string
}

type JWTConfig struct {
	PrivateKeyPath     string
	PublicKeyPath      string
	AccessTokenExpiry  int    // in minutes
	RefreshTokenExpiry int    // in days
	SharedSecret       string // HS256 secret, used when no key pair is configured
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromEmail  string
	ReplyTo    string
	TLSEnabled bool
}

type RateLimitConfig struct {
	LoginAttempts int
	LoginWindow   int // in seconds
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Enabled reports whether Redis should be used.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Enabled reports whether Kafka should be used.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Brokers[0] != ""
}

// Enabled reports whether outbound mail delivery is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// IsDevelopment reports whether the server runs in development mode.
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

// Window is the span over which failed logins are counted.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.LoginWindow) * time.Second
}

// TTL is how long cached dashboard stats stay fresh.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.StatsTTL) * time.Second
}

// Signing reports whether tokens can be issued with this configuration.
func (j JWTConfig) Signing() bool {
	return j.SharedSecret != "" || (j.PrivateKeyPath != "" && j.PublicKeyPath != "")
}

// Validate rejects configurations the services cannot start with. Outside
// development a signing key is mandatory.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is empty"))
	}
	if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
		errs = append(errs, errors.New("mongodb.uri and mongodb.database are required"))
	}
	if !c.Server.IsDevelopment() && !c.JWT.Signing() {
		errs = append(errs, errors.New("jwt.shared_secret or a key pair is required outside development"))
	}
	if c.JWT.AccessTokenExpiry <= 0 || c.JWT.RefreshTokenExpiry <= 0 {
		errs = append(errs, errors.New("jwt token expiries must be positive"))
	}
	if c.RateLimit.LoginAttempts <= 0 || c.RateLimit.LoginWindow <= 0 {
		errs = append(errs, errors.New("ratelimit.login_attempts and ratelimit.login_window must be positive"))
	}
	if c.Kafka.Enabled() && c.Kafka.Topics.EmailInbound == "" {
		errs = append(errs, errors.New("kafka.topics.email_inbound is required when kafka is enabled"))
	}
	if c.SMTP.Enabled() && c.SMTP.FromEmail == "" {
		errs = append(errs, errors.New("smtp.from_email is required when smtp is enabled"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load reads config.yaml (if any) and the environment, then validates the
// result. MONGODB_URI overrides mongodb.uri, and so on.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/crm-backend")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	var config Config

	config.Server = ServerConfig{
		Port:        v.GetString("server.port"),
		Environment: v.GetString("server.environment"),
		Version:     v.GetString("server.version"),
	}

	config.MongoDB = MongoDBConfig{
		URI:         v.GetString("mongodb.uri"),
		Database:    v.GetString("mongodb.database"),
		MaxPoolSize: v.GetUint64("mongodb.max_pool_size"),
		MinPoolSize: v.GetUint64("mongodb.min_pool_size"),
		MaxRetries:  v.GetInt("mongodb.max_retries"),
		TLSCAFile:   v.GetString("mongodb.tls_ca_file"),
	}

	config.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		StatsTTL: v.GetInt("redis.stats_ttl"),
	}

	config.Kafka = KafkaConfig{
		Brokers:         v.GetStringSlice("kafka.brokers"),
		ProducerTimeout: v.GetInt("kafka.producer_timeout"),
		ConsumerGroup:   v.GetString("kafka.consumer_group"),
		ClientID:        v.GetString("kafka.client_id"),
		Username:        v.GetString("kafka.username"),
		Password:        v.GetString("kafka.password"),
		SSL:             v.GetBool("kafka.ssl"),
		SASLMechanism:   v.GetString("kafka.sasl_mechanism"),
		Topics: KafkaTopics{
			Audit:         v.GetString("kafka.topics.audit"),
			EmailSent:     v.GetString("kafka.topics.email_sent"),
			EmailInbound:  v.GetString("kafka.topics.email_inbound"),
			ActivityEvent: v.GetString("kafka.topics.activity_event"),
		},
	}

	config.JWT = JWTConfig{
		PrivateKeyPath:     v.GetString("jwt.private_key_path"),
		PublicKeyPath:      v.GetString("jwt.public_key_path"),
		AccessTokenExpiry:  v.GetInt("jwt.access_token_expiry"),
		RefreshTokenExpiry: v.GetInt("jwt.refresh_token_expiry"),
		SharedSecret:       v.GetString("jwt.shared_secret"),
	}

	config.SMTP = SMTPConfig{
		Host:       v.GetString("smtp.host"),
		Port:       v.GetInt("smtp.port"),
		Username:   v.GetString("smtp.username"),
		Password:   v.GetString("smtp.password"),
		FromEmail:  v.GetString("smtp.from_email"),
		ReplyTo:    v.GetString("smtp.reply_to"),
		TLSEnabled: v.GetBool("smtp.tls_enabled"),
	}

	config.RateLimit = RateLimitConfig{
		LoginAttempts: v.GetInt("ratelimit.login_attempts"),
		LoginWindow:   v.GetInt("ratelimit.login_window"),
	}

	config.CORS = CORSConfig{
		AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
	}

	config.ProcessorPort = v.GetInt("processor.port")

	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.version", "1.0.0")

	// MongoDB defaults
	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "crm")
	v.SetDefault("mongodb.max_pool_size", 100)
	v.SetDefault("mongodb.min_pool_size", 10)
	v.SetDefault("mongodb.max_retries", 5)
	v.SetDefault("mongodb.tls_ca_file", "")

	// Redis defaults (empty addr disables the stats cache)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl", 60)

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.producer_timeout", 5000)
	v.SetDefault("kafka.consumer_group", "crm-backend")
	v.SetDefault("kafka.client_id", "crm-backend-producer")
	v.SetDefault("kafka.username", "")
	v.SetDefault("kafka.password", "")
	v.SetDefault("kafka.ssl", false)
	v.SetDefault("kafka.sasl_mechanism", "plain")

	// Kafka topic defaults
	v.SetDefault("kafka.topics.audit", "audit.events")
	v.SetDefault("kafka.topics.email_sent", "communications.email_sent")
	v.SetDefault("kafka.topics.email_inbound", "communications.email_inbound")
	v.SetDefault("kafka.topics.activity_event", "crm.activities")

	// JWT defaults
	v.SetDefault("jwt.private_key_path", "")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.access_token_expiry", 15) // 15 minutes
	v.SetDefault("jwt.refresh_token_expiry", 7) // 7 days
	v.SetDefault("jwt.shared_secret", "")

	// SMTP defaults (empty host disables delivery)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from_email", "")
	v.SetDefault("smtp.reply_to", "")
	v.SetDefault("smtp.tls_enabled", true)

	// Login throttling
	v.SetDefault("ratelimit.login_attempts", 5)
	v.SetDefault("ratelimit.login_window", 900)

	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:5173",
	})

	// Processor defaults
	v.SetDefault("processor.port", 8081) // Health check port for processor
}
