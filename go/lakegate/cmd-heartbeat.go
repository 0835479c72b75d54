package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/dispatch"
	"github.com/sovakpeter/lakegate/go/protocol"
)

type cmdHeartbeat struct {
	Token string `long:"token" env:"LAKEGATE_USER_TOKEN" description:"User token to heartbeat with; defaults to the service principal"`
}

func (cmd cmdHeartbeat) Execute(_ []string) error {
	cfg, err := config.Settings()
	if err != nil {
		return err
	}
	manager, err := dispatch.NewManager(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	start := time.Now()
	resp := manager.Execute(context.Background(), &protocol.OperationRequest{
		Operation: protocol.OpHeartbeat,
	}, cmd.Token, "", nil)

	if !resp.Success {
		color.Red("heartbeat failed: %s (%s)", resp.Error.Message, resp.Error.Category)
		return fmt.Errorf("heartbeat failed: %s", resp.Error.Code)
	}
	color.Green("warehouse alive in %s", time.Since(start).Round(time.Millisecond))
	return nil
}
