// internal/workers/discovery/process-citizen-query/handler.go
package processcitizenquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/metrics"
	"service-discovery/internal/common/validation"
	"service-discovery/internal/models"
)

const (
	TaskType = "process-citizen-query"
)

// QueryProcessor is the session manager entry point.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, rawText, sessionID string, profile *models.CitizenProfile) (*models.QueryResponse, error)
}

type Handler struct {
	config    *Config
	processor QueryProcessor
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, processor QueryProcessor, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		processor: processor,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.AsStandardError(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidRequestError("input cannot be nil")
	}
	if result := validation.ValidateQueryValue(input.request()); !result.Valid {
		return nil, apperrors.NewInvalidRequestError(result.Error())
	}

	resp, err := h.processor.ProcessQuery(ctx, input.Query, input.SessionID, input.Profile)
	if err != nil {
		return nil, err
	}
	return toOutput(resp), nil
}

func toOutput(resp *models.QueryResponse) *Output {
	out := &Output{
		RequestID:             resp.RequestID,
		SessionID:             resp.SessionID,
		ResponseText:          resp.ResponseText,
		NeedsClarification:    resp.NeedsClarification,
		ClarificationQuestion: resp.ClarificationQuestion,
		ServiceIDs:            make([]string, 0, len(resp.Services)),
		NoMatch:               resp.NoMatch != nil,
		HumanAssistance:       resp.HumanAssistance,
		Confidence:            resp.Confidence,
		Degraded:              resp.Degraded(),
		ResponseTimeMs:        resp.ResponseTime.Milliseconds(),
		Response:              resp,
	}
	for _, m := range resp.Services {
		out.ServiceIDs = append(out.ServiceIDs, m.Service.ID)
	}
	for _, m := range resp.Alternatives {
		out.AlternativeIDs = append(out.AlternativeIDs, m.Service.ID)
	}
	return out
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
