package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sethvargo/go-retry"

	"github.com/JonMunkholm/tablefix/internal/config"
	"github.com/JonMunkholm/tablefix/internal/logging"
)

// ErrBadResponse marks a model answer that could not be parsed or validated.
var ErrBadResponse = errors.New("planner returned an unusable response")

const systemPrompt = `You are a planner that converts natural-language spreadsheet/text-column instructions
into an executable plan for a backtracking regex engine (.NET / Python syntax).

Decide the intent yourself. If the instruction is not a table/text-column task, set is_table_op=false,
intent="none", give a reason and return no candidates.

Rules:
- Avoid catastrophic backtracking ((.+)+, (.*)+, nested star/plus).
- Prefer Unicode-aware classes.
- If the user did not name columns, return columns=[] (the caller decides).
- For replace/mask provide a literal "replacement"; it may contain backreferences like $1, $2.
- For normalize provide a "format" string that uses captured groups (e.g. "+61 $1 $2 $3").
- Provide candidates that meaningfully differ.`

const userPromptTemplate = `Natural language intent:
%s

Known column names:
%s

Constraints:
- Return 1 to %d candidates.
- Ensure "replacement" is present for replace/mask, or "format" is present for normalize.
- Backreferences must use $1, $2, ...%s`

// GenerateSchema reflects T into a compact JSON schema for structured output.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// PlanSchema is the response schema sent with every request.
var PlanSchema = GenerateSchema[Plan]()

var planSchemaParam = openai.ResponseFormatJSONSchemaJSONSchemaParam{
	Name:        "regex_plan",
	Description: openai.String("Candidate regex transformation plan"),
	Schema:      PlanSchema,
	Strict:      openai.Bool(true),
}

// completeFunc sends one chat exchange and returns the assistant text.
type completeFunc func(ctx context.Context, system, user string) (string, error)

// OpenAI plans with an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	complete      completeFunc
	maxCandidates int
	maxAttempts   int
	timeout       time.Duration
	backoffBase   time.Duration
	backoffCap    time.Duration
}

// NewOpenAI builds a planner from cfg. SDK-level retries are disabled; Plan
// retries the whole exchange, including unparseable answers.
func NewOpenAI(cfg config.PlannerConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	temperature := cfg.Temperature

	return &OpenAI{
		complete: func(ctx context.Context, system, user string) (string, error) {
			chat, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(system),
					openai.UserMessage(user),
				},
				ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
					OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
						JSONSchema: planSchemaParam,
					},
				},
				Model:       model,
				Temperature: openai.Float(temperature),
			})
			if err != nil {
				return "", fmt.Errorf("openai chat completion: %w", err)
			}
			if len(chat.Choices) == 0 {
				return "", errors.New("openai: empty choices")
			}
			return chat.Choices[0].Message.Content, nil
		},
		maxCandidates: clamp(cfg.MaxCandidates, 1, 3),
		maxAttempts:   max(1, cfg.MaxAttempts),
		timeout:       cfg.Timeout,
		backoffBase:   time.Second,
		backoffCap:    6 * time.Second,
	}
}

// Plan asks the model for a plan, retrying with exponential backoff when the
// call fails or the answer does not parse and validate.
func (o *OpenAI) Plan(ctx context.Context, req Request) (*Plan, error) {
	logger := logging.FromContext(ctx)
	user := buildUserPrompt(req, o.maxCandidates)

	b := retry.NewExponential(o.backoffBase)
	b = retry.WithCappedDuration(o.backoffCap, b)
	b = retry.WithMaxRetries(uint64(o.maxAttempts-1), b)

	var plan *Plan
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		callCtx := ctx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}

		raw, err := o.complete(callCtx, systemPrompt, user)
		if err == nil {
			plan, err = parsePlan(raw)
		}
		if err != nil {
			logger.Warn("planner attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("plan after %d attempts: %w", attempt, err)
	}

	if len(plan.Candidates) > o.maxCandidates {
		plan.Candidates = plan.Candidates[:o.maxCandidates]
	}
	logger.Info("planner produced plan",
		"intent", plan.Intent,
		"table_op", plan.IsTableOp,
		"candidates", len(plan.Candidates),
		"attempts", attempt,
	)
	return plan, nil
}

func buildUserPrompt(req Request, k int) string {
	cols, _ := json.Marshal(nonNil(req.Columns))
	extra := ""
	if req.Replacement != nil {
		extra = fmt.Sprintf("\n- The user asked for the replacement %q where a replacement applies.", *req.Replacement)
	}
	return fmt.Sprintf(userPromptTemplate, strings.TrimSpace(req.Instruction), cols, k, extra)
}

// parsePlan decodes raw, falling back to the outermost {...} span when the
// model wrapped its JSON in prose, and validates the result.
func parsePlan(raw string) (*Plan, error) {
	raw = strings.TrimSpace(raw)

	var p Plan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: no JSON object in %q", ErrBadResponse, truncate(raw, 300))
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return &p, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
