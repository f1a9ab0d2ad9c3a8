// Package router answers user messages by letting an oracle choose among the
// registered tools until it produces a final answer.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"recipeassistant"
	"recipeassistant/memory"
	"recipeassistant/tools"
)

const (
	DefaultMaxIterations = 5
	DefaultToolTimeout   = 30 * time.Second
	DefaultOracleTimeout = 60 * time.Second

	// DefaultSystemPrompt opens every prompt sent to the oracle.
	DefaultSystemPrompt = "You are a helpful assistant that suggests recipes, provides nutrition information, and responds to chat history."

	// IterationLimitAnswer is the final answer of a turn that ran out of iterations.
	IterationLimitAnswer = "I could not obtain the requested information within the allowed number of steps."

	// OracleStepName is the tool name under which malformed oracle replies are recorded.
	OracleStepName = "oracle"
)

// Memory records finished turns.
type Memory interface {
	Append(turns ...memory.Turn) error
}

type Option func(*Router)

func WithMaxIterations(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

func WithToolTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.toolTimeout = d
		}
	}
}

// WithOracleTimeout bounds each oracle round trip.
func WithOracleTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.oracleTimeout = d
		}
	}
}

func WithSystemPrompt(s string) Option {
	return func(r *Router) { r.system = s }
}

func WithLogger(l recipeassistant.CoordinationLogger) Option {
	return func(r *Router) { r.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

func WithMeter(m metric.Meter) Option {
	return func(r *Router) { r.meter = m }
}

// Router handles the turns of one conversation. It is not safe for
// concurrent use; create one per session.
type Router struct {
	oracle        Oracle
	tools         recipeassistant.ToolProvider
	memory        Memory
	system        string
	maxIterations int
	toolTimeout   time.Duration
	oracleTimeout time.Duration
	logger        recipeassistant.CoordinationLogger
	tracer        trace.Tracer
	meter         metric.Meter

	runsCounter           metric.Int64Counter
	iterationCounter      metric.Int64Counter
	toolCallsCounter      metric.Int64Counter
	toolCallsFailed       metric.Int64Counter
	routingFailures       metric.Int64Counter
	malformedActions      metric.Int64Counter
	toolExecutionTimeHist metric.Float64Histogram
}

// New builds a router over the given tools that records finished turns in mem.
func New(oracle Oracle, provider recipeassistant.ToolProvider, mem Memory, opts ...Option) *Router {
	r := &Router{
		oracle:        oracle,
		tools:         provider,
		memory:        mem,
		system:        DefaultSystemPrompt,
		maxIterations: DefaultMaxIterations,
		toolTimeout:   DefaultToolTimeout,
		oracleTimeout: DefaultOracleTimeout,
		logger:        recipeassistant.NewNoOpCoordinationLogger(),
		tracer:        tracenoop.NewTracerProvider().Tracer(recipeassistant.TracerNameRouter),
		meter:         metricnoop.NewMeterProvider().Meter(recipeassistant.TracerNameRouter),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.runsCounter, _ = r.meter.Int64Counter("router_runs_total",
		metric.WithDescription("Total number of routed turns started"))
	r.iterationCounter, _ = r.meter.Int64Counter("router_iterations_total",
		metric.WithDescription("Total number of oracle round trips"))
	r.toolCallsCounter, _ = r.meter.Int64Counter("tool_calls_total",
		metric.WithDescription("Total number of tool calls executed"))
	r.toolCallsFailed, _ = r.meter.Int64Counter("tool_calls_failed_total",
		metric.WithDescription("Total number of tool calls that failed"))
	r.routingFailures, _ = r.meter.Int64Counter("routing_failures_total",
		metric.WithDescription("Total number of turns that named an unknown tool"))
	r.malformedActions, _ = r.meter.Int64Counter("malformed_actions_total",
		metric.WithDescription("Total number of oracle replies that could not be read as an action"))
	r.toolExecutionTimeHist, _ = r.meter.Float64Histogram("tool_execution_time_seconds",
		metric.WithDescription("Time taken to execute individual tools in seconds"))

	return r
}

// Handle routes one user message to completion and returns the final answer.
// On a final answer the user and assistant turns are appended to memory.
func (r *Router) Handle(ctx context.Context, message string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "Router.Handle")
	defer span.End()

	slog.Info("ROUTER: Handling message", "message", message)
	r.runsCounter.Add(ctx, 1)

	prompt := Prompt{
		System:  r.system,
		Tools:   r.toolSpecs(),
		Message: message,
	}

	for iter := 1; iter <= r.maxIterations; iter++ {
		r.iterationCounter.Add(ctx, 1)
		iterLog := recipeassistant.IterationLog{Iteration: iter, Timestamp: time.Now(), Message: message}
		if b, err := json.Marshal(prompt); err == nil {
			iterLog.Prompt = string(b)
		}

		slog.Info("ROUTER: Asking oracle", "iteration", iter, "steps", len(prompt.Scratchpad))

		action, err := r.decide(ctx, prompt)
		if err != nil {
			iterLog.Error = err.Error()

			if errors.Is(err, ErrMalformedAction) {
				r.malformedActions.Add(ctx, 1)
				step := Step{Tool: OracleStepName, Output: err.Error(), Failed: true}
				prompt.Scratchpad = append(prompt.Scratchpad, step)
				iterLog.Step = &recipeassistant.StepLog{Tool: step.Tool, Output: step.Output, Failed: true}
				r.logIteration(iterLog)
				slog.Warn("ROUTER: Oracle reply was malformed; asking again", "iteration", iter, "error", err)
				continue
			}

			r.logIteration(iterLog)
			span.SetStatus(codes.Error, "oracle failed")
			span.RecordError(err)
			return "", &OracleError{Err: err}
		}
		iterLog.Decision = action

		switch a := action.(type) {
		case FinalAnswer:
			r.logIteration(iterLog)
			slog.Info("ROUTER: Final answer", "iteration", iter, "length", len(a.Text))
			return r.finish(ctx, span, message, a.Text)

		case ToolCall:
			tool, err := r.tools.GetTool(a.Tool)
			if err != nil {
				r.routingFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("tool_name", a.Tool)))
				iterLog.Error = err.Error()
				r.logIteration(iterLog)
				routingErr := &RoutingError{Tool: a.Tool, Err: err}
				span.SetStatus(codes.Error, "unknown tool")
				span.RecordError(routingErr)
				slog.Error("ROUTER: Oracle named an unknown tool", "tool", a.Tool)
				return "", routingErr
			}

			step, duration := r.invoke(ctx, tool, a)
			prompt.Scratchpad = append(prompt.Scratchpad, step)
			iterLog.Step = &recipeassistant.StepLog{
				Tool:     step.Tool,
				Input:    step.Input,
				Output:   step.Output,
				Failed:   step.Failed,
				Duration: duration,
			}
			r.logIteration(iterLog)

		default:
			err := fmt.Errorf("%w: unsupported action %T", ErrMalformedAction, action)
			prompt.Scratchpad = append(prompt.Scratchpad, Step{Tool: OracleStepName, Output: err.Error(), Failed: true})
			iterLog.Error = err.Error()
			r.logIteration(iterLog)
		}
	}

	slog.Warn("ROUTER: Iteration limit reached", "max_iterations", r.maxIterations)
	span.AddEvent("Iteration limit reached", trace.WithAttributes(attribute.Int("max_iterations", r.maxIterations)))
	return r.finish(ctx, span, message, IterationLimitAnswer)
}

func (r *Router) finish(ctx context.Context, span trace.Span, message, answer string) (string, error) {
	if err := r.memory.Append(memory.UserTurn(message), memory.AssistantTurn(answer)); err != nil {
		span.SetStatus(codes.Error, "memory append failed")
		span.RecordError(err)
		return "", fmt.Errorf("record turn: %w", err)
	}
	return answer, nil
}

// decide asks the oracle for the next action under the oracle timeout. An
// oracle that ignores cancellation is abandoned when the deadline passes.
func (r *Router) decide(ctx context.Context, prompt Prompt) (Action, error) {
	ctx, cancel := context.WithTimeout(ctx, r.oracleTimeout)
	defer cancel()

	type result struct {
		action Action
		err    error
	}
	done := make(chan result, 1)

	go func() {
		action, err := r.oracle.Decide(ctx, prompt)
		done <- result{action: action, err: err}
	}()

	select {
	case res := <-done:
		return res.action, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("no decision within %s: %w", r.oracleTimeout, ctx.Err())
	}
}

// invoke runs a tool under the tool timeout. Failures become failed steps.
func (r *Router) invoke(ctx context.Context, tool tools.Tool, call ToolCall) (Step, time.Duration) {
	ctx, span := r.tracer.Start(ctx, "Router.Tool", trace.WithAttributes(
		attribute.String("tool_name", call.Tool),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.toolTimeout)
	defer cancel()

	slog.Info("ROUTER: Invoking tool", "name", call.Tool, "input", call.Input)
	r.toolCallsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("tool_name", call.Tool)))

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	start := time.Now()
	go func() {
		out, err := tool.Invoke(ctx, call.Input)
		done <- result{out: out, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	duration := time.Since(start)
	r.toolExecutionTimeHist.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool_name", call.Tool)))

	if res.err != nil {
		r.toolCallsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("tool_name", call.Tool)))
		span.SetStatus(codes.Error, "tool failed")
		span.RecordError(res.err)
		slog.Warn("ROUTER: Tool failed", "name", call.Tool, "error", res.err)
		return Step{
			Tool:   call.Tool,
			Input:  call.Input,
			Output: fmt.Sprintf("tool %s failed: %v", call.Tool, res.err),
			Failed: true,
		}, duration
	}

	slog.Info("ROUTER: Tool executed", "name", call.Tool, "duration_ms", duration.Milliseconds())
	return Step{Tool: call.Tool, Input: call.Input, Output: res.out}, duration
}

func (r *Router) toolSpecs() []ToolSpec {
	registered := r.tools.GetTools()
	specs := make([]ToolSpec, 0, len(registered))
	for _, t := range registered {
		specs = append(specs, ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return specs
}

// logIteration logs a step using the configured logger, handling errors gracefully
func (r *Router) logIteration(iteration recipeassistant.IterationLog) {
	if r.logger != nil {
		if err := r.logger.LogIteration(iteration); err != nil {
			slog.Error("Failed to log routing iteration", "error", err, "iteration", iteration.Iteration)
		}
	}
}

var _ recipeassistant.Router = (*Router)(nil)
