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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/loqalabs/loqa-assistant/internal/api"
	"github.com/loqalabs/loqa-assistant/internal/config"
	"github.com/loqalabs/loqa-assistant/internal/logging"
	"github.com/loqalabs/loqa-assistant/internal/recording"
	"github.com/loqalabs/loqa-assistant/internal/tiers"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the assistant loop
const ServiceName = "loqa.assistant"

// Dependencies are the read-only views the monitoring surface serves
type Dependencies struct {
	Recordings *recording.Archive
	History    api.CommandStore // nil when command history is disabled
	Skills     api.SkillLister
	Logs       api.LogSource
	Tiers      CapabilityReporter // optional dependency probe
}

// CapabilityReporter reports the reachable resolution tier
type CapabilityReporter interface {
	Capabilities() tiers.Capabilities
}

// Server is the monitoring surface: a JSON/websocket HTTP server plus an
// optional gRPC health service
type Server struct {
	cfg    config.MonitorConfig
	deps   Dependencies
	mux    *http.ServeMux
	server *http.Server

	grpcServer *grpc.Server
	health     *health.Server

	startedAt time.Time

	mu       sync.RWMutex
	httpAddr net.Addr
	grpcAddr net.Addr
}

// New creates a monitoring server
func New(cfg config.MonitorConfig, deps Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		cfg:       cfg,
		deps:      deps,
		mux:       mux,
		startedAt: time.Now(),
	}

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.GRPCPort > 0 {
		s.grpcServer = grpc.NewServer()
		s.health = health.NewServer()
		s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
	}

	s.routes()

	return s
}

// Start listens on the configured ports and serves until Stop is called
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.mu.Lock()
	s.httpAddr = lis.Addr()
	s.mu.Unlock()

	if s.grpcServer != nil {
		grpcLis, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.GRPCPort)))
		if err != nil {
			lis.Close()
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}

		s.mu.Lock()
		s.grpcAddr = grpcLis.Addr()
		s.mu.Unlock()

		go func() {
			if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logging.LogError(err, "gRPC health server failed")
			}
		}()
	}

	logging.Sugar.Infow("Monitoring server starting",
		"http_addr", lis.Addr().String(),
		"grpc_enabled", s.grpcServer != nil)

	if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// SetServing reports the assistant loop state on the gRPC health service
func (s *Server) SetServing(serving bool) {
	if s.health == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

// Addr returns the HTTP listen address once Start has bound it
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.httpAddr
}

// GRPCAddr returns the gRPC listen address once Start has bound it
func (s *Server) GRPCAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grpcAddr
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	logging.Sugar.Infow("Shutting down monitoring server")

	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	if s.deps.Recordings != nil {
		recordings := api.NewRecordingsHandler(s.deps.Recordings)
		s.mux.HandleFunc("/api/recordings", recordings.HandleRecordings)
		s.mux.HandleFunc("/api/recordings/", recordings.HandleRecordingByName)
	}

	if s.deps.History != nil {
		commands := api.NewCommandsHandler(s.deps.History)
		s.mux.HandleFunc("/api/commands", commands.HandleCommands)
		s.mux.HandleFunc("/api/commands/", commands.HandleCommandByID)
	} else {
		s.mux.HandleFunc("/api/commands", s.handleHistoryDisabled)
		s.mux.HandleFunc("/api/commands/", s.handleHistoryDisabled)
	}

	if s.deps.Skills != nil {
		s.mux.HandleFunc("/api/skills", api.NewSkillsHandler(s.deps.Skills).HandleSkills)
	}

	if s.deps.Logs != nil {
		s.mux.Handle("/ws/logs", api.NewLogStreamHandler(s.deps.Logs))
	}

	logging.Logger.Debug("HTTP routes configured",
		zap.Bool("recordings", s.deps.Recordings != nil),
		zap.Bool("history", s.deps.History != nil),
		zap.Bool("log_stream", s.deps.Logs != nil))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":          "ok",
		"timestamp":       time.Now(),
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"history_enabled": s.deps.History != nil,
	}

	if s.deps.Tiers != nil {
		caps := s.deps.Tiers.Capabilities()
		health["tier"] = caps.Tier
		health["services"] = caps.Services
		health["degraded"] = caps.Degraded
		if caps.Degraded {
			health["degradation_reason"] = caps.DegradationReason
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		logging.Sugar.Errorw("Failed to write health response", "error", err)
	}
}

func (s *Server) handleHistoryDisabled(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": "command history is disabled",
	})
}
