package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// APIConfig points at the remote Community backend.
type APIConfig struct {
	BaseURL string `json:"baseUrl"`
	Token   string `json:"token"`
}

// ServerConfig configures the local UI server.
type ServerConfig struct {
	Port int `json:"port"`
}

// Config is the full client configuration.
type Config struct {
	API    APIConfig    `json:"api"`
	Server ServerConfig `json:"server"`
}

// LoadConfig reads the configuration from a JSON file.
func LoadConfig(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration file: %v", err)
	}
	defer file.Close()

	var config Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error decoding configuration file: %v", err)
	}

	return &config, nil
}

// ApplyEnvOverrides lets the environment (or a .env file loaded by the
// caller) override the file-based configuration.
func ApplyEnvOverrides(config *Config) {
	if v := os.Getenv("COMMUNITY_API_URL"); v != "" {
		config.API.BaseURL = v
	}
	if v := os.Getenv("COMMUNITY_API_TOKEN"); v != "" {
		config.API.Token = v
	}
	if v := os.Getenv("COMMUNITY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
}
