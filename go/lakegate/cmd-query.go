package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/dispatch"
	"github.com/sovakpeter/lakegate/go/protocol"
)

type cmdQuery struct {
	Name   string   `long:"name" required:"true" description:"Named query, optionally namespaced (row_count or analytics.row_count)"`
	Params []string `long:"param" short:"p" description:"Query parameter as name=value; repeatable"`
	Token  string   `long:"token" env:"LAKEGATE_USER_TOKEN" description:"User token to run as; defaults to the service principal"`
}

func (cmd cmdQuery) Execute(_ []string) error {
	params := map[string]any{}
	for _, kv := range cmd.Params {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("malformed --param %q, want name=value", kv)
		}
		// Values parse as JSON when possible, falling back to strings, so
		// --param max_rows=10 arrives as a number.
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		params[name] = parsed
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

	resp := manager.Execute(context.Background(), &protocol.OperationRequest{
		Operation: protocol.OpRead,
		Mode:      protocol.ModeNamed,
		Options:   &protocol.Options{QueryName: cmd.Name, Params: params},
	}, cmd.Token, "", nil)

	if !resp.Success {
		color.Red("query failed: %s (%s)", resp.Error.Message, resp.Error.Category)
		return fmt.Errorf("query failed: %s", resp.Error.Code)
	}

	color.Green("%v rows", resp.Metadata["row_count"])
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp.Data)
}
