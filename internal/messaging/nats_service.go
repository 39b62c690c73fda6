/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/events"
	"github.com/loqalabs/loqa-assistant/internal/logging"
)

// ErrNotConnected is returned when publishing before Connect succeeded
var ErrNotConnected = errors.New("NATS connection not established")

// Subject suffixes under the configured prefix
const (
	SubjectCommands = "commands"
	SubjectDevices  = "devices"
)

// Conn is the part of *nats.Conn the service needs
type Conn interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	Drain() error
	Close()
}

// NATSService publishes assistant events on NATS
type NATSService struct {
	cfg  config.NATSConfig
	conn Conn
}

// NewNATSService creates an unconnected service
func NewNATSService(cfg config.NATSConfig) *NATSService {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "loqa.assistant"
	}
	return &NATSService{cfg: cfg}
}

// NewNATSServiceWithConn wraps an existing connection
func NewNATSServiceWithConn(conn Conn, prefix string) *NATSService {
	s := NewNATSService(config.NATSConfig{SubjectPrefix: prefix})
	s.conn = conn
	return s
}

// Connect establishes the connection to the NATS server
func (s *NATSService) Connect() error {
	logging.Sugar.Infow("🔌 Connecting to NATS", "url", s.cfg.URL)

	opts := []nats.Option{
		nats.Name("loqa-assistant"),
		nats.ReconnectWait(s.cfg.ReconnectWait),
		nats.MaxReconnects(s.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("⚠️ NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Sugar.Infow("🔄 NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Sugar.Info("🔌 NATS connection closed")
		}),
	}

	conn, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	s.conn = conn
	logging.Sugar.Infow("✅ Connected to NATS server", "url", conn.ConnectedUrl())
	return nil
}

// Subject joins parts under the configured prefix
func (s *NATSService) Subject(parts ...string) string {
	return strings.Join(append([]string{s.cfg.SubjectPrefix}, parts...), ".")
}

// PublishCommandEvent publishes a finalized command on <prefix>.commands
func (s *NATSService) PublishCommandEvent(event *events.CommandEvent) error {
	subject := s.Subject(SubjectCommands)
	if err := s.publishJSON(subject, event); err != nil {
		return err
	}

	logging.LogNATSEvent(subject, "publish",
		zap.String("uuid", event.UUID),
		zap.String("intent", event.Intent),
		zap.String("source", event.Source),
	)
	return nil
}

// PublishDeviceCommand publishes an actuator command on <prefix>.devices.<device>
func (s *NATSService) PublishDeviceCommand(event *events.DeviceCommandEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	subject := s.Subject(SubjectDevices, event.Device)
	if err := s.publishJSON(subject, event); err != nil {
		return err
	}

	logging.LogNATSEvent(subject, "publish",
		zap.String("device", event.Device),
		zap.String("action", event.Action),
	)
	return nil
}

func (s *NATSService) publishJSON(subject string, v any) error {
	if s.conn == nil || !s.conn.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// IsConnected returns true if connected to NATS
func (s *NATSService) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Close drains pending messages and closes the connection
func (s *NATSService) Close() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
	}
	s.conn = nil
}
