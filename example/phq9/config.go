package main

import (
	"encoding/json"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// BaseURL points the demo at a real screening service. Leave empty to run
	// against the built-in canned flow.
	BaseURL        string `json:"base_url"`
	AccessToken    string `json:"access_token"`
	EntryContextID string `json:"entry_context_id"`
}

func loadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{}
	if file, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(file, conf); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("COBALT_BASE_URL"); v != "" {
		conf.BaseURL = v
	}
	if v := os.Getenv("COBALT_ACCESS_TOKEN"); v != "" {
		conf.AccessToken = v
	}
	if v := os.Getenv("COBALT_ENTRY_CONTEXT_ID"); v != "" {
		conf.EntryContextID = v
	}
	return conf, nil
}
