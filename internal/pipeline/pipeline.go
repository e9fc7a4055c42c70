// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package pipeline composes the injection gate and the conversation
// orchestrator: the guard screens untrusted input first, and only input
// that passes reaches the tool-enabled assistant loop. A blocked request
// never triggers an assistant call and never exposes the tool schema.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promptgate-dev/promptgate/internal/agent"
	"github.com/promptgate-dev/promptgate/internal/guard"
	"github.com/promptgate-dev/promptgate/internal/provider"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// Status is the pipeline's top-level outcome label.
type Status string

const (
	StatusAllowed Status = "ALLOWED"
	StatusBlocked Status = "BLOCKED"
)

// Request is one pipeline run. Every run is independent; nothing is
// shared across requests.
type Request struct {
	SystemInstructions string
	UserInput          string

	// ModelRef selects the assistant model ("provider/model"); empty
	// means the registry default.
	ModelRef string

	Options  provider.Options
	MaxTurns int
}

// Outcome is the pipeline's result. Answer is set for ALLOWED outcomes,
// Rationale for BLOCKED ones. RunID correlates the outcome with this
// run's log lines.
type Outcome struct {
	RunID     string
	Status    Status
	Answer    string
	Rationale string
	Turns     int
	Usage     provider.Usage
}

// Config holds Controller dependencies.
type Config struct {
	Guard        *guard.Guard
	Orchestrator *agent.Orchestrator
}

// Controller runs the two-stage gate-then-converse pipeline.
type Controller struct {
	guard        *guard.Guard
	orchestrator *agent.Orchestrator
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Guard == nil {
		return nil, pgerr.New(pgerr.CodeOrchestratorRunFailure, "pipeline: Guard is required")
	}
	if cfg.Orchestrator == nil {
		return nil, pgerr.New(pgerr.CodeOrchestratorRunFailure, "pipeline: Orchestrator is required")
	}
	return &Controller{
		guard:        cfg.Guard,
		orchestrator: cfg.Orchestrator,
	}, nil
}

// Handle screens the input and, when allowed, runs the conversation.
// On BLOCK it short-circuits: no assistant call is made, so the protected
// instructions and tools are never exposed to input that failed the gate.
// Errors propagate verbatim with the failing stage recorded on them.
func (c *Controller) Handle(ctx context.Context, req Request) (*Outcome, error) {
	runID := uuid.NewString()
	log := slog.With("run_id", runID)

	verdict, err := c.guard.Evaluate(ctx, req.SystemInstructions, req.UserInput)
	if err != nil {
		return nil, err
	}

	if !verdict.Allowed() {
		log.Info("input blocked by injection gate", "rationale", verdict.Rationale)
		return &Outcome{
			RunID:     runID,
			Status:    StatusBlocked,
			Rationale: verdict.Rationale,
		}, nil
	}

	log.Debug("input cleared by injection gate", "rationale", verdict.Rationale)

	result, err := c.orchestrator.Run(ctx, agent.RunRequest{
		SystemInstructions: req.SystemInstructions,
		UserInput:          req.UserInput,
		ModelRef:           req.ModelRef,
		Options:            req.Options,
		MaxTurns:           req.MaxTurns,
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{
		RunID:  runID,
		Status: StatusAllowed,
		Answer: result.Answer,
		Turns:  result.Turns,
		Usage:  result.Usage,
	}, nil
}
