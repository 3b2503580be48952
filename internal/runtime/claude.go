package runtime

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"

	"github.com/agenthive/hive/pkg/models"
)

// ClaudeConfig configures a Claude-backed runtime.
type ClaudeConfig struct {
	// Model is the Claude model to use. Empty selects a default.
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseAWSBedrock routes requests through AWS Bedrock.
	UseAWSBedrock bool
	// AWSRegion is the Bedrock region (e.g. "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name.
	AWSProfile string
	// MaxTokens caps the model's output per task. Zero selects a default.
	MaxTokens int64
}

// ClaudeRuntime executes tasks by prompting a Claude model. Spawning is
// bookkeeping only; the specialization prompt is applied when the spawned
// agent's tasks execute.
type ClaudeRuntime struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64

	mu     sync.Mutex
	agents map[string]Spec
}

// NewClaudeRuntime creates a runtime backed by the Anthropic API or AWS
// Bedrock, depending on the config.
func NewClaudeRuntime(cfg ClaudeConfig) (*ClaudeRuntime, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	return &ClaudeRuntime{
		inner:     anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		agents:    make(map[string]Spec),
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to
// Bedrock cross-region inference profile format (us.anthropic.{model}-v1:0).
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Model returns the configured model name.
func (r *ClaudeRuntime) Model() anthropic.Model {
	return r.model
}

// Spawn records the spec and returns a fresh agent id.
func (r *ClaudeRuntime) Spawn(ctx context.Context, spec Spec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := string(spec.Type) + "-" + uuid.New().String()[:8]
	r.mu.Lock()
	r.agents[id] = spec
	r.mu.Unlock()
	return id, nil
}

// ExecuteTask prompts the model with the task and maps the reply to an
// ExecResult. The caller owns timeouts via ctx.
func (r *ClaudeRuntime) ExecuteTask(ctx context.Context, task *models.Task) (*ExecResult, error) {
	system := fmt.Sprintf(
		"You are a %s agent in an orchestrated agent hierarchy. Complete the task and reply with the result.",
		task.Type)

	var prompt strings.Builder
	prompt.WriteString(task.Description)
	if len(task.Capabilities) > 0 {
		fmt.Fprintf(&prompt, "\n\nRequired capabilities: %s", strings.Join(task.Capabilities, ", "))
	}
	if len(task.Input) > 0 {
		fmt.Fprintf(&prompt, "\n\nInput: %v", task.Input)
	}

	resp, err := r.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.String())),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}

	var output strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			output.WriteString(variant.Text)
		}
	}

	return &ExecResult{
		Success: true,
		Data: map[string]any{
			"task_id":       task.ID,
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
		},
		Output: output.String(),
	}, nil
}

var _ Runtime = (*ClaudeRuntime)(nil)
