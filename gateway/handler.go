package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/haowjy/tandem-llm-go"
	"github.com/haowjy/tandem-llm-go/metrics"
)

// chat serves POST /. Request-level failures are rejected with an HTTP
// status before any upstream call; once a stream is open, failures travel
// in-band as error frames.
func (s *Server) chat(c *gin.Context) {
	requestID := uuid.NewString()
	c.Header("X-Request-ID", requestID)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejection := tandem.NewRequestError(tandem.KindInvalidRequest, "",
			fmt.Sprintf("malformed request body: %v", err))
		c.JSON(http.StatusBadRequest, errorResponse{Error: toWireError(rejection)})
		return
	}

	mode := "aggregate"
	if req.Stream {
		mode = "stream"
	}

	ctx, span := s.tracer.Start(c.Request.Context(), "gateway.chat",
		trace.WithAttributes(
			attribute.String("tandem.request_id", requestID),
			attribute.String("tandem.mode", mode),
			attribute.String("tandem.model", req.Model),
		))
	defer span.End()

	chainReq := &tandem.ChainRequest{
		Messages:    req.Messages,
		System:      req.System,
		Model:       req.Model,
		Overrides:   req.overrides(),
		Credentials: s.credentials(c),
	}

	pipeline := tandem.New(s.reasoning, s.generation, s.alternates...)
	start := time.Now()

	if err := pipeline.Validate(chainReq); err != nil {
		span.RecordError(err)
		s.reject(c, mode, err, start)
		return
	}
	gen, err := pipeline.SelectGeneration(req.Model)
	if err != nil {
		span.RecordError(err)
		s.reject(c, mode, err, start)
		return
	}

	genModel := req.Model
	if genModel == "" {
		genModel = s.models[gen.Name()]
	}
	span.SetAttributes(attribute.String("tandem.generation_provider", gen.Name().String()))

	log.Printf("[GATEWAY] %s start: mode=%s model=%q messages=%d generation=%s",
		requestID, mode, req.Model, len(req.Messages), gen.Name())

	var runErr error
	if req.Stream {
		sink := newSSEWriter(c, req.Verbose)
		runErr = pipeline.Run(ctx, chainReq, sink)
	} else {
		runErr = s.runAggregate(ctx, c, pipeline, chainReq, req.Verbose, gen, genModel)
	}

	s.finish(requestID, mode, gen, genModel, pipeline, runErr, start, span)
}

// runAggregate executes the pipeline against a buffering sink and renders
// either the consolidated response or the mapped error.
func (s *Server) runAggregate(ctx context.Context, c *gin.Context, p *tandem.Pipeline, chainReq *tandem.ChainRequest, verbose bool, gen tandem.Adapter, genModel string) error {
	agg := tandem.NewAggregator()
	if err := p.Run(ctx, chainReq, agg); err != nil {
		c.JSON(statusFor(err), errorResponse{Error: toWireError(err)})
		return err
	}
	result, err := agg.Result()
	if err != nil {
		c.JSON(statusFor(err), errorResponse{Error: toWireError(err)})
		return err
	}

	for _, frameErr := range result.FrameErrors {
		metrics.RecordUpstreamError(frameErr.Provider.String(), string(frameErr.Kind))
	}

	body := aggregateResponse{
		ReasoningContent: result.ReasoningContent,
		Content:          result.Content,
		Usage:            result.Usage,
	}
	if verbose {
		body.PhaseUsage = result.PhaseUsage
		if cost, ok := s.estimateCost(result.PhaseUsage, gen, genModel); ok {
			body.EstimatedCost = &cost
		}
		for _, frameErr := range result.FrameErrors {
			body.FrameErrors = append(body.FrameErrors, toWireError(frameErr))
		}
	}
	c.JSON(http.StatusOK, body)
	return nil
}

// reject renders a pre-flight rejection and records it.
func (s *Server) reject(c *gin.Context, mode string, err error, start time.Time) {
	c.JSON(statusFor(err), errorResponse{Error: toWireError(err)})
	metrics.RecordRequest(mode, string(tandem.KindOf(err)), time.Since(start))
}

// finish records the run outcome: the request counter and duration, any
// fatal upstream error, and per-phase token and cost accounting.
func (s *Server) finish(requestID, mode string, gen tandem.Adapter, genModel string, p *tandem.Pipeline, runErr error, start time.Time, span trace.Span) {
	status := "ok"
	if runErr != nil {
		status = string(tandem.KindOf(runErr))
		span.RecordError(runErr)
		var provErr *tandem.ProviderError
		if errors.As(runErr, &provErr) {
			metrics.RecordUpstreamError(provErr.Provider.String(), string(provErr.Kind))
		}
	}
	metrics.RecordRequest(mode, status, time.Since(start))

	total, byPhase := p.Usage()
	for phase, usage := range byPhase {
		provider, model := s.phaseBilling(phase, gen, genModel)
		metrics.RecordTokens(provider.String(), string(phase), usage)
		if cost, ok := tandem.EstimateCost(provider, model, usage); ok {
			metrics.RecordCost(provider.String(), model, cost)
		}
	}

	log.Printf("[GATEWAY] %s finish: mode=%s status=%s duration=%s tokens=%d",
		requestID, mode, status, time.Since(start).Round(time.Millisecond), total.TotalTokens)
}

// credentials builds the request-scoped key bag: configured fallback keys
// first, then credential headers on top. The bag is never logged.
func (s *Server) credentials(c *gin.Context) tandem.Credentials {
	creds := make(tandem.Credentials, len(s.fallback))
	for id, key := range s.fallback {
		creds[id] = key
	}
	for id, header := range credentialHeaders {
		if key := strings.TrimSpace(c.GetHeader(header)); key != "" {
			creds[id] = key
		}
	}
	return creds
}

// phaseBilling resolves which provider and model a phase's usage bills to.
func (s *Server) phaseBilling(phase tandem.Phase, gen tandem.Adapter, genModel string) (tandem.ProviderID, string) {
	if phase == tandem.PhaseGeneration {
		return gen.Name(), genModel
	}
	return s.reasoning.Name(), s.models[s.reasoning.Name()]
}

// estimateCost sums the estimated spend across phases. Unknown pricing for
// any phase makes the whole estimate unknown rather than understated.
func (s *Server) estimateCost(byPhase map[tandem.Phase]tandem.Usage, gen tandem.Adapter, genModel string) (float64, bool) {
	if len(byPhase) == 0 {
		return 0, false
	}
	var total float64
	for phase, usage := range byPhase {
		provider, model := s.phaseBilling(phase, gen, genModel)
		cost, ok := tandem.EstimateCost(provider, model, usage)
		if !ok {
			return 0, false
		}
		total += cost
	}
	return total, true
}
