// Package config provides functionality for managing configuration options
// for the application using command-line flags, an optional JSON config
// file, and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
)

// Options holds the configuration values for the datastore server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string

	// SecretKey derives the AES key that encrypts user PINs at rest.
	SecretKey string

	// AdminSecret gates the PIN-decrypt endpoint.
	AdminSecret string

	// LogLevel sets the zap logging level.
	LogLevel string

	// RetentionDays is how long plans for past weeks are kept.
	RetentionDays int

	// Config is the path to the config file.
	Config string
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.SecretKey, "secret", "", "PIN encryption secret")
	flag.StringVar(&options.AdminSecret, "admin-secret", "", "admin API secret")
	flag.StringVar(&options.LogLevel, "log-level", "info", "logging level")
	flag.IntVar(&options.RetentionDays, "retention-days", 180, "weeks older than this many days are purged")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags, config file, and environment
// variables to set configuration values. Environment variables win over the
// config file, which wins over flag defaults. It returns a pointer to the
// Options struct containing the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		options.SecretKey = secret
	}
	if admin := os.Getenv("ADMIN_SECRET"); admin != "" {
		options.AdminSecret = admin
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}

	return options
}
