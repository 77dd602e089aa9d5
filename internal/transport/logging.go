// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"readcheck/internal/log"
)

// LoggingTransport writes each event as a structured log line.
type LoggingTransport struct {
	logger *slog.Logger
}

// NewLoggingTransport logs through the global logger.
func NewLoggingTransport() *LoggingTransport {
	log.Debugf("transport: using logging transport")
	return &LoggingTransport{logger: log.Logger().With("component", "transport")}
}

// Send logs data as JSON, or with %+v when it does not marshal.
func (lt *LoggingTransport) Send(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		lt.logger.Info("event", "type", fmt.Sprintf("%T", data), "data", fmt.Sprintf("%+v", data))
		return nil
	}
	lt.logger.Info("event", "type", fmt.Sprintf("%T", data), "data", json.RawMessage(b))
	return nil
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
