package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voxboard/voxboard-core/core/session"
)

// CanvasController is the external canvas/board collaborator the session can
// steer mid-conversation. Board mutation beyond camera control goes through
// the delegated intent call instead.
type CanvasController interface {
	Pan(ctx context.Context, dx, dy float64) error
	Zoom(ctx context.Context, factor float64) error
	Fit(ctx context.Context) error
	Center(ctx context.Context) error
	Focus(ctx context.Context, target string) error
}

// PlanStatus classifies the outcome of a delegated board-plan request.
type PlanStatus string

const (
	PlanOK         PlanStatus = "ok"
	PlanInvalid    PlanStatus = "invalid_plan"
	PlanMissingKey PlanStatus = "missing_key"
	PlanError      PlanStatus = "error"
)

// PlanResult is the structured result of a delegated board-plan request.
type PlanResult struct {
	Status  PlanStatus
	Summary string
}

// IntentHandler receives the spoken planning request and returns a structured
// result. It may await external work; the engine never blocks audio capture
// or playback on it.
type IntentHandler func(ctx context.Context, text string) PlanResult

const (
	toolCanvasPan    = "canvas_pan"
	toolCanvasZoom   = "canvas_zoom"
	toolCanvasFit    = "canvas_fit"
	toolCanvasCenter = "canvas_center"
	toolCanvasFocus  = "canvas_focus"
	toolBoardPlan    = "request_board_plan"
)

// defaultCanvasThrottle rate-limits mutating canvas calls to avoid camera
// thrashing when the model issues bursts of moves.
const defaultCanvasThrottle = 120 * time.Millisecond

type canvasPanArgs struct {
	DX float64 `json:"dx" jsonschema:"description=Horizontal pan distance in board units"`
	DY float64 `json:"dy" jsonschema:"description=Vertical pan distance in board units"`
}

type canvasZoomArgs struct {
	Factor float64 `json:"factor" jsonschema:"description=Zoom multiplier relative to the current zoom"`
}

type canvasFocusArgs struct {
	Target string `json:"target" jsonschema:"description=Identifier or label of the element to focus"`
}

type boardPlanArgs struct {
	Request string `json:"request" jsonschema:"description=The user's board change request in plain language"`
}

// toolResult is what one executed function call produces: the structured
// response sent back into the session and an optional human-readable summary
// appended to the turn.
type toolResult struct {
	Response map[string]any
	Summary  string
}

// toolBridge maps session-issued function calls onto the canvas collaborator
// and the delegated intent handler.
type toolBridge struct {
	canvas CanvasController
	intent IntentHandler

	throttle time.Duration

	mu           sync.Mutex
	lastMutation time.Time

	now func() time.Time
}

func newToolBridge(canvas CanvasController, intent IntentHandler) *toolBridge {
	return &toolBridge{
		canvas:   canvas,
		intent:   intent,
		throttle: defaultCanvasThrottle,
		now:      time.Now,
	}
}

// Declarations advertises the callable tools to the remote session. Schemas
// are reflected from the argument structs.
func (b *toolBridge) Declarations() []session.ToolDeclaration {
	var declarations []session.ToolDeclaration

	if b.canvas != nil {
		declarations = append(declarations,
			declarationFor(toolCanvasPan, "Pan the canvas camera by a relative offset.", &canvasPanArgs{}),
			declarationFor(toolCanvasZoom, "Zoom the canvas camera by a multiplier.", &canvasZoomArgs{}),
			declarationFor(toolCanvasFit, "Fit all board content into view.", nil),
			declarationFor(toolCanvasCenter, "Center the camera on the board.", nil),
			declarationFor(toolCanvasFocus, "Focus the camera on a named board element.", &canvasFocusArgs{}),
		)
	}
	if b.intent != nil {
		declarations = append(declarations,
			declarationFor(toolBoardPlan, "Request a structured plan of board changes from the planning collaborator.", &boardPlanArgs{}),
		)
	}

	return declarations
}

func declarationFor(name, description string, args any) session.ToolDeclaration {
	declaration := session.ToolDeclaration{Name: name, Description: description}
	if args == nil {
		return declaration
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(args)
	schema.Version = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		logger.Warn("failed to reflect tool schema", "tool", name, "error", err)
		return declaration
	}
	parameters := map[string]any{}
	if err := json.Unmarshal(raw, &parameters); err != nil {
		logger.Warn("failed to normalize tool schema", "tool", name, "error", err)
		return declaration
	}

	declaration.Parameters = parameters
	return declaration
}

// Execute runs one function call and always returns a structured result;
// execution errors are converted into error responses, never propagated.
func (b *toolBridge) Execute(ctx context.Context, call session.FunctionCall) toolResult {
	ctx, span := tracer.Start(ctx, "execute tool call")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool_call.id", call.CallID),
		attribute.String("tool_call.name", call.Name),
	)

	result, err := b.execute(ctx, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return toolResult{
			Response: map[string]any{"result": "error", "message": err.Error()},
			Summary:  fmt.Sprintf("%s failed: %v", call.Name, err),
		}
	}

	return result
}

func (b *toolBridge) execute(ctx context.Context, call session.FunctionCall) (toolResult, error) {
	switch call.Name {
	case toolCanvasPan:
		var args canvasPanArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return toolResult{}, err
		}
		return b.mutateCanvas(call.Name, fmt.Sprintf("panned by (%.0f, %.0f)", args.DX, args.DY), func() error {
			return b.canvas.Pan(ctx, args.DX, args.DY)
		})

	case toolCanvasZoom:
		var args canvasZoomArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return toolResult{}, err
		}
		return b.mutateCanvas(call.Name, fmt.Sprintf("zoomed by %.2fx", args.Factor), func() error {
			return b.canvas.Zoom(ctx, args.Factor)
		})

	case toolCanvasFit:
		return b.mutateCanvas(call.Name, "fit board to view", func() error {
			return b.canvas.Fit(ctx)
		})

	case toolCanvasCenter:
		return b.mutateCanvas(call.Name, "centered camera", func() error {
			return b.canvas.Center(ctx)
		})

	case toolCanvasFocus:
		var args canvasFocusArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return toolResult{}, err
		}
		return b.mutateCanvas(call.Name, fmt.Sprintf("focused on %q", args.Target), func() error {
			return b.canvas.Focus(ctx, args.Target)
		})

	case toolBoardPlan:
		if b.intent == nil {
			return toolResult{}, fmt.Errorf("no intent handler configured")
		}
		var args boardPlanArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return toolResult{}, err
		}

		planResult := b.intent(ctx, args.Request)
		return toolResult{
			Response: map[string]any{
				"result":  string(planResult.Status),
				"summary": planResult.Summary,
			},
			Summary: planResult.Summary,
		}, nil

	default:
		return toolResult{}, fmt.Errorf("unknown tool %q", call.Name)
	}
}

// mutateCanvas applies the shared throttle before any camera mutation.
// Throttled calls report a structured throttled result and have no side
// effects; they produce no turn summary.
func (b *toolBridge) mutateCanvas(name, summary string, mutate func() error) (toolResult, error) {
	if b.canvas == nil {
		return toolResult{}, fmt.Errorf("no canvas controller configured")
	}

	if !b.allowMutation() {
		return toolResult{Response: map[string]any{"result": "throttled"}}, nil
	}

	if err := mutate(); err != nil {
		return toolResult{}, fmt.Errorf("%s: %w", name, err)
	}

	return toolResult{
		Response: map[string]any{"result": "ok"},
		Summary:  summary,
	}, nil
}

func (b *toolBridge) allowMutation() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if !b.lastMutation.IsZero() && now.Sub(b.lastMutation) < b.throttle {
		return false
	}
	b.lastMutation = now
	return true
}

func decodeArgs(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
