// Package worker runs the asynchronous phase of the pipeline: it consumes
// process jobs from the queue and hands them to the orchestrator.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/StreamVault/internal/pipeline"
	"github.com/dharsanguruparan/StreamVault/internal/queue"
)

// Processor dispatches queue tasks into the orchestrator.
type Processor struct {
	orchestrator *pipeline.Orchestrator
}

// NewProcessor constructs a Processor.
func NewProcessor(orchestrator *pipeline.Orchestrator) *Processor {
	return &Processor{orchestrator: orchestrator}
}

// Register attaches the task handlers to the mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeProcessVideo, p.handleProcess)
}

// handleProcess decodes the payload and runs processing. Pipeline failures
// are terminal (the asset is marked failed and the diagnostic persisted), so
// the handler returns nil rather than asking the queue to retry; only a
// malformed payload is surfaced as a task error.
func (p *Processor) handleProcess(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode process payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.VideoID == "" {
		return fmt.Errorf("process payload missing video id: %w", asynq.SkipRetry)
	}
	log.Printf("worker picked up video %s", payload.VideoID)
	if err := p.orchestrator.Process(ctx, payload.VideoID); err != nil {
		// Only infrastructure errors reach here (store unreachable while
		// transitioning). Log and drop; the asset keeps its last status and
		// an operator can requeue it.
		log.Printf("processing aborted for %s: %v", payload.VideoID, err)
	}
	return nil
}
