package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/bench"
	"github.com/droverhq/drover/internal/tooling"
)

// Transport is the gateway call surface the dispatcher drives.
type Transport interface {
	Do(ctx context.Context, endpoint string, payload any, out any) error
}

// Dispatcher routes tool calls to the benchmark gateway. Every dispatch is
// logged as a request/response pair tagged with the endpoint. Read and
// mutating tools convert failures into {"error": ...} values the model can
// react to; the terminal tool instead re-raises with an enriched message so
// the turn loop can tell a hard finalize failure from missing data. Once
// the completion latch is set, state-changing dispatches are refused
// without touching the gateway.
type Dispatcher struct {
	transport Transport
	registry  *tooling.Registry
	actions   *ActionLogger
	latch     *tooling.CompletionState
	telemetry *telemetry.Telemetry
	pageOpts  bench.PageOptions
	logger    *log.Logger
}

// NewDispatcher creates a dispatcher over a validated tool registry.
func NewDispatcher(transport Transport, registry *tooling.Registry, actions *ActionLogger, latch *tooling.CompletionState, tele *telemetry.Telemetry, pageOpts bench.PageOptions) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		registry:  registry,
		actions:   actions,
		latch:     latch,
		telemetry: tele,
		pageOpts:  pageOpts,
		logger:    log.New(log.Writer(), "[DISPATCH] ", log.LstdFlags),
	}
}

// Registry exposes the dispatcher's tool registry.
func (d *Dispatcher) Registry() *tooling.Registry { return d.registry }

// Completed reports the completion latch state.
func (d *Dispatcher) Completed() bool { return d.latch.Done() }

// Call dispatches one tool by name. The returned map is the gateway reply,
// or an {"error": ...} value for recoverable failures. A non-nil error is
// returned only for the terminal tool's hard failure.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	tc, ok := d.registry.Tool(name)
	if !ok {
		d.actions.LogError(fmt.Sprintf("[REQ BLOCKED %s] unknown tool", name))
		return map[string]interface{}{"error": fmt.Sprintf("unknown tool %q", name)}, nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	if d.latch.Done() && tc.Kind != tooling.KindRead {
		d.actions.LogError(fmt.Sprintf("[REQ BLOCKED %s] %s", tc.Endpoint, tooling.ErrTaskCompleted))
		return map[string]interface{}{"error": tooling.ErrTaskCompleted.Error()}, nil
	}

	if tc.Paginated {
		items := bench.CollectPages(ctx, d.pageFunc(tc.Endpoint, args), d.pageOpts)
		return map[string]interface{}{"items": items, "count": len(items)}, nil
	}

	d.actions.Request(tc.Endpoint, args)
	start := time.Now()
	out := map[string]interface{}{}
	err := d.transport.Do(ctx, tc.Endpoint, args, &out)
	d.telemetry.RecordAPICall(ctx, tc.Endpoint, time.Since(start), err)
	if err != nil {
		d.actions.Error(tc.Endpoint, err)
		if tc.Kind == tooling.KindTerminal {
			return nil, fmt.Errorf("%s failed: %s", tc.Name, gatewayMessage(err))
		}
		return map[string]interface{}{"error": gatewayMessage(err)}, nil
	}

	d.actions.Response(tc.Endpoint, out)
	if tc.Kind == tooling.KindTerminal {
		if d.latch.MarkDone(tc.Name) {
			d.logger.Printf("task completed via %s", tc.Name)
		}
	}
	return out, nil
}

// pageFunc adapts one paginated endpoint into the adaptive pagination
// loop, logging every attempt so corrective retries stay visible.
func (d *Dispatcher) pageFunc(endpoint string, args map[string]interface{}) bench.PageFunc {
	return func(ctx context.Context, offset, limit int) (bench.Page, error) {
		payload := make(map[string]interface{}, len(args)+2)
		for k, v := range args {
			payload[k] = v
		}
		payload["offset"] = offset
		payload["limit"] = limit

		d.actions.Request(endpoint, payload)
		start := time.Now()
		var page bench.Page
		err := d.transport.Do(ctx, endpoint, payload, &page)
		d.telemetry.RecordAPICall(ctx, endpoint, time.Since(start), err)
		if err != nil {
			d.actions.Error(endpoint, err)
			d.telemetry.RecordPaginationRetry(ctx, endpoint)
			return bench.Page{}, err
		}
		d.actions.Response(endpoint, page)
		return page, nil
	}
}

func gatewayMessage(err error) string {
	var apiErr *bench.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
