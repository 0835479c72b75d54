package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/dispatch"
	"github.com/sovakpeter/lakegate/go/protocol"
)

type cmdServe struct {
	MetricsAddr string `long:"metrics-addr" env:"LAKEGATE_METRICS_ADDR" description:"Optional address serving Prometheus metrics"`
}

// envelope is one request line on stdin.
type envelope struct {
	Request       *protocol.OperationRequest `json:"request"`
	OBOToken      string                     `json:"obo_token,omitempty"`
	CorrelationID string                     `json:"correlation_id,omitempty"`
	Headers       map[string]string          `json:"headers,omitempty"`
}

func (cmd cmdServe) Execute(_ []string) error {
	cfg, err := config.Settings()
	if err != nil {
		return err
	}
	manager, err := dispatch.NewManager(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	if cmd.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cmd.MetricsAddr, mux); err != nil {
				log.WithError(err).Error("metrics listener failed")
			}
		}()
		log.WithField("addr", cmd.MetricsAddr).Info("serving metrics")
	}

	log.Info("serving gateway requests on stdio")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			resp := &protocol.OperationResponse{
				Success: false,
				Error: protocol.ErrorDetailFrom(protocol.ValidationError(
					"The request is not valid JSON.", err.Error())),
				Metadata: map[string]any{},
			}
			if err := encoder.Encode(resp); err != nil {
				return err
			}
			continue
		}

		resp := manager.Execute(context.Background(),
			env.Request, env.OBOToken, env.CorrelationID, env.Headers)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
