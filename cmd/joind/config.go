package main

import (
	"flag"
	"os"
)

// ServerConfig holds the joind server configuration.
type ServerConfig struct {
	Addr        string
	SchemaDir   string
	SnapshotDir string
	LogLevel    string
	WebhookURL  string
}

// configResolver defines how to resolve a single configuration value.
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string)
}

// loadServerConfig loads server configuration from CLI flags and environment
// variables. Uses a resolver table so adding an option is a one-entry change.
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{}

	resolvers := []configResolver{
		{
			flagName:    "addr",
			envVarName:  "JOIND_ADDR",
			defaultVal:  ":8080",
			description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
			setter:      func(c *ServerConfig, v string) { c.Addr = v },
		},
		{
			flagName:    "schema-dir",
			envVarName:  "JOIND_SCHEMA_DIR",
			defaultVal:  "",
			description: "optional directory of schema files (JSON or YAML) to load and watch for hot reload",
			setter:      func(c *ServerConfig, v string) { c.SchemaDir = v },
		},
		{
			flagName:    "snapshot-dir",
			envVarName:  "JOIND_SNAPSHOT_DIR",
			defaultVal:  "./data",
			description: "directory where soup snapshots are stored",
			setter:      func(c *ServerConfig, v string) { c.SnapshotDir = v },
		},
		{
			flagName:    "log-level",
			envVarName:  "JOIND_LOG_LEVEL",
			defaultVal:  "info",
			description: "log level: debug, info, warn, error",
			setter:      func(c *ServerConfig, v string) { c.LogLevel = v },
		},
		{
			flagName:    "webhook-url",
			envVarName:  "JOIND_WEBHOOK_URL",
			defaultVal:  "",
			description: "optional webhook URL that receives reaction-fired events",
			setter:      func(c *ServerConfig, v string) { c.WebhookURL = v },
		},
	}

	flagVars := make(map[string]*string)
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = flag.String(resolver.flagName, "", resolver.description)
	}

	flag.Parse()

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		resolver.setter(&cfg, value)
	}

	return cfg
}
