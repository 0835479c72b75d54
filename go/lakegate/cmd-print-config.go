package main

import (
	"encoding/json"
	"os"

	"github.com/sovakpeter/lakegate/go/config"
)

type cmdPrintConfig struct{}

func (cmd cmdPrintConfig) Execute(_ []string) error {
	cfg, err := config.Settings()
	if err != nil {
		return err
	}

	// Copy so masking the token does not disturb the live settings.
	masked := *cfg
	if masked.Warehouse.AccessToken != "" {
		masked.Warehouse.AccessToken = "***"
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&masked)
}
