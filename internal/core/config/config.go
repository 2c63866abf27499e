package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// Database holds the database configuration.
	Database DatabaseConfig `mapstructure:",squash"`

	// S3 holds the object storage configuration.
	S3 S3Config `mapstructure:",squash"`

	// Queue holds the message queue configuration.
	Queue QueueConfig `mapstructure:",squash"`

	// Storage holds document processing storage settings.
	Storage StorageConfig `mapstructure:",squash"`
}

// DatabaseConfig holds database connection details.
type DatabaseConfig struct {
	// DSN is the Postgres connection string.
	DSN string `mapstructure:"DATABASE_DSN" required:"true"`
}

// S3Config holds the credentials for the S3-compatible object store.
type S3Config struct {
	// Endpoint is the base URL of the object store (e.g., a MinIO instance).
	Endpoint string `mapstructure:"S3_ENDPOINT" default:"http://localhost:9000"`
	// Region is the S3 region name.
	Region string `mapstructure:"S3_REGION" default:"us-east-1"`
	// AccessKey is the access key id for the object store.
	AccessKey string `mapstructure:"S3_ACCESS_KEY" required:"true"`
	// SecretKey is the secret access key for the object store.
	SecretKey string `mapstructure:"S3_SECRET_KEY" required:"true"`
}

// QueueConfig selects and configures the document message queue backend.
type QueueConfig struct {
	// Backend is the queue implementation: memory, redis or kafka.
	Backend string `mapstructure:"QUEUE_BACKEND" default:"memory"`
	// RedisURL is the Redis connection URL for the redis backend.
	RedisURL string `mapstructure:"REDIS_URL" default:"redis://localhost:6379/0"`
	// RedisKey is the list key used by the redis backend.
	RedisKey string `mapstructure:"REDIS_QUEUE_KEY" default:"shipdocs:documents"`
	// KafkaBroker is the broker address for the kafka backend.
	KafkaBroker string `mapstructure:"KAFKA_BROKER" default:"localhost:9092"`
	// KafkaTopic is the topic carrying document messages.
	KafkaTopic string `mapstructure:"KAFKA_TOPIC" default:"shipment-documents"`
	// KafkaGroupID is the consumer group of the document processor.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID" default:"shipdocs-processor"`
}

// StorageConfig holds document processing storage settings.
type StorageConfig struct {
	// Container is the container the document processor reads blobs from.
	Container string `mapstructure:"STORAGE_CONTAINER" default:"shipments-documents"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
