// Package ai wraps a language-model provider behind a streaming completion
// engine. A single engine instance is shared by all sessions; prior history
// is passed in per call.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatrelay/internal/config"
	"chatrelay/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

type Service struct {
	chatModel    model.BaseChatModel
	systemPrompt string
	modelName    string
}

// NewService builds the engine for the named provider from config.
func NewService(ctx context.Context, cfg *config.Config, provider string) (*Service, error) {
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", provider, err)
	}

	return &Service{
		chatModel:    chatModel,
		systemPrompt: cfg.BasicConfig.SystemPrompt,
		modelName:    provCfg.Model,
	}, nil
}

// NewServiceWithModel wires a prebuilt chat model. Used by tests.
func NewServiceWithModel(chatModel model.BaseChatModel, systemPrompt string) *Service {
	return &Service{chatModel: chatModel, systemPrompt: systemPrompt}
}

// ModelName reports the provider model identifier.
func (s *Service) ModelName() string {
	return s.modelName
}

// StreamChat generates a reply to input given the prior history, delivering
// each text fragment to onFragment in production order and returning the
// concatenated full reply. A provider failure, before or during the stream,
// does not surface as an error: it becomes one final diagnostic fragment and
// the accumulated text stays valid. Only an onFragment error (the caller is
// gone) aborts the stream and is returned.
func (s *Service) StreamChat(ctx context.Context, prevHistory []models.Message, input string, onFragment func(string) error) (string, error) {
	messages := s.convertMessages(prevHistory, input)

	var full strings.Builder

	emit := func(fragment string) error {
		full.WriteString(fragment)
		if onFragment == nil {
			return nil
		}
		return onFragment(fragment)
	}

	streamReader, err := s.chatModel.Stream(ctx, messages)
	if err != nil {
		if cbErr := emit(diagnostic(err)); cbErr != nil {
			return full.String(), cbErr
		}
		return full.String(), nil
	}
	defer streamReader.Close()

	for {
		chunk, err := streamReader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if cbErr := emit(diagnostic(err)); cbErr != nil {
				return full.String(), cbErr
			}
			break
		}
		if chunk.Content == "" {
			continue
		}
		if cbErr := emit(chunk.Content); cbErr != nil {
			return full.String(), cbErr
		}
	}
	return full.String(), nil
}

func (s *Service) convertMessages(history []models.Message, input string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, &schema.Message{Role: schema.System, Content: s.systemPrompt})
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: input})
	return messages
}

// diagnostic formats a provider failure as an inline stream fragment, kind
// plus message, mirroring what callers see in the recorded history.
func diagnostic(err error) string {
	return fmt.Sprintf("\n\n[ERROR] Provider failed: %T: %v", err, err)
}
