package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/dispatch"
	"github.com/sovakpeter/lakegate/go/protocol"
)

type cmdSchema struct {
	Catalog string `long:"catalog" description:"List schemas of this catalog"`
	Schema  string `long:"schema" description:"List tables of this schema; requires --catalog"`
	Table   string `long:"table" description:"Show the cached schema of catalog.schema.table"`
}

func (cmd cmdSchema) Execute(_ []string) error {
	req := &protocol.OperationRequest{Operation: protocol.OpSchema}
	switch {
	case cmd.Table != "":
		req.Scenario = protocol.ScenarioTableInfo
		req.Table = cmd.Table
	case cmd.Schema != "":
		req.Scenario = protocol.ScenarioListTables
		req.Catalog = cmd.Catalog
		req.SchemaName = cmd.Schema
	case cmd.Catalog != "":
		req.Scenario = protocol.ScenarioListSchemas
		req.Catalog = cmd.Catalog
	default:
		req.Scenario = protocol.ScenarioListCatalogs
	}

	cfg, err := config.Settings()
	if err != nil {
		return err
	}
	manager, err := dispatch.NewManager(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	resp := manager.Execute(context.Background(), req, "", "", nil)
	if !resp.Success {
		color.Red("schema lookup failed: %s (%s)", resp.Error.Message, resp.Error.Category)
		return fmt.Errorf("schema lookup failed: %s", resp.Error.Code)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp.Data)
}
