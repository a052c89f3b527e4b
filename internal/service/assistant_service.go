package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/citizenhub/complaint-service/internal/config"
	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

//go:embed assistant_intents.yaml
var defaultIntents []byte

// ChatMessage is one role-tagged transcript entry.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Intent maps keywords in a user message to a canned reply.
type Intent struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Reply    string   `yaml:"reply"`
}

// IntentCatalog is the offline answer set.
type IntentCatalog struct {
	SystemPrompt string   `yaml:"system_prompt"`
	Intents      []Intent `yaml:"intents"`
	Fallback     string   `yaml:"fallback"`
}

// LoadIntentCatalog parses the embedded catalog, or the file at path when set.
func LoadIntentCatalog(path string) (*IntentCatalog, error) {
	raw := defaultIntents
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read intents: %w", err)
		}
		raw = data
	}
	var catalog IntentCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse intents: %w", err)
	}
	if strings.TrimSpace(catalog.Fallback) == "" {
		return nil, errors.New("intents: fallback reply required")
	}
	return &catalog, nil
}

// Match returns the reply of the first intent with a keyword in query, else the fallback.
func (c *IntentCatalog) Match(query string) string {
	normalized := strings.ToLower(query)
	for _, intent := range c.Intents {
		for _, keyword := range intent.Keywords {
			if keyword != "" && strings.Contains(normalized, strings.ToLower(keyword)) {
				return strings.TrimSpace(intent.Reply)
			}
		}
	}
	return strings.TrimSpace(c.Fallback)
}

// ChatUpstream completes a transcript.
type ChatUpstream interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// AssistantService answers FAQ transcripts through an upstream model,
// degrading to canned replies when the upstream is unavailable.
type AssistantService struct {
	upstream ChatUpstream
	catalog  *IntentCatalog
	logger   *zap.Logger
}

// NewAssistantService builds the service. A nil upstream always answers offline.
func NewAssistantService(upstream ChatUpstream, catalog *IntentCatalog, logger *zap.Logger) *AssistantService {
	return &AssistantService{upstream: upstream, catalog: catalog, logger: orNop(logger)}
}

// Reply answers the latest user message in transcript. It never fails.
func (s *AssistantService) Reply(ctx context.Context, transcript []ChatMessage) string {
	latest := latestUserMessage(transcript)
	if s.upstream == nil {
		return s.catalog.Match(latest)
	}

	messages := transcript
	if len(messages) == 0 || messages[0].Role != "system" {
		messages = append([]ChatMessage{{Role: "system", Content: strings.TrimSpace(s.catalog.SystemPrompt)}}, transcript...)
	}

	reply, err := s.upstream.Complete(ctx, messages)
	if err != nil {
		s.logger.Warn("assistant upstream failed; using canned reply", zap.Error(err))
		return s.catalog.Match(latest)
	}
	if strings.TrimSpace(reply) == "" {
		return s.catalog.Match(latest)
	}
	return reply
}

func latestUserMessage(transcript []ChatMessage) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == "user" {
			return transcript[i].Content
		}
	}
	return ""
}

// completionUpstream calls an OpenAI-compatible chat completions endpoint.
type completionUpstream struct {
	url     string
	apiKey  string
	model   string
	timeout time.Duration
}

// NewCompletionUpstream returns nil when no upstream URL is configured.
func NewCompletionUpstream(cfg config.AssistantConfig) ChatUpstream {
	if strings.TrimSpace(cfg.UpstreamURL) == "" {
		return nil
	}
	return &completionUpstream{
		url:     cfg.UpstreamURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout(),
	}
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

func (u *completionUpstream) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	timeout := u.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return "", errorutil.WrapCause(errorutil.ErrTransportFailure, context.DeadlineExceeded)
	}

	agent := fiber.Post(u.url).
		Timeout(timeout).
		JSON(completionRequest{Model: u.model, Messages: messages})
	if u.apiKey != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+u.apiKey)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", errorutil.WrapCause(errorutil.ErrTransportFailure, errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return "", errorutil.WrapCause(errorutil.ErrTransportFailure, fmt.Errorf("upstream status %d", code))
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errorutil.WrapCause(errorutil.ErrTransportFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
