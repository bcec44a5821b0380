// Package agent wraps the external conversational-agent runtime behind a
// narrow interface so the chat service can be tested against a
// deterministic stub.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"go-agent-chat/internal/model"
)

// Runtime generates one agent response for a message given the prior
// conversation turns. onChunk is invoked once per partial text chunk, in
// generation order; a non-nil return stops generation. The final response
// text is returned after the stream completes.
type Runtime interface {
	Generate(ctx context.Context, history []model.Message, message string, onChunk func(ctx context.Context, text string) error) (string, error)
}

// GenkitRuntime is the production Runtime backed by Genkit with the
// Google AI plugin. The plugin reads its API key from the environment
// (GEMINI_API_KEY).
type GenkitRuntime struct {
	g            *genkit.Genkit
	modelName    string
	systemPrompt string
	logger       *slog.Logger
}

func NewGenkitRuntime(ctx context.Context, modelName string, systemPrompt string, logger *slog.Logger) (*GenkitRuntime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initialize genkit with googleai plugin")
	}

	logger.Info("agent runtime initialized", "model", modelName)
	return &GenkitRuntime{
		g:            g,
		modelName:    modelName,
		systemPrompt: systemPrompt,
		logger:       logger,
	}, nil
}

func (r *GenkitRuntime) Generate(ctx context.Context, history []model.Message, message string, onChunk func(ctx context.Context, text string) error) (string, error) {
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case "model":
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(message)))

	opts := []ai.GenerateOption{
		ai.WithModelName(r.modelName),
		ai.WithSystem(r.systemPrompt),
		ai.WithMessages(messages...),
	}

	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(func(cctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			return onChunk(cctx, text)
		}))
	}

	resp, err := genkit.Generate(ctx, r.g, opts...)
	if err != nil {
		return "", fmt.Errorf("agent generate: %w", err)
	}

	return resp.Text(), nil
}
