// Package agent generates the spoken reply for each conversation turn.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/storevoice/storevoice/internal/session"
)

// historyLimit caps how many prior messages are replayed to the model.
const historyLimit = 10

// Service runs the prompt/model chain that produces agent utterances.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the response chain on top of the provided chat model.
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile response chain: %w", err)
	}

	return &Service{chatModel: chatModel, chain: runnable}, nil
}

// Request carries everything one turn needs to produce a reply.
type Request struct {
	StoreName string
	Tone      string
	Hours     string
	Context   []string
	History   []session.Message
	Utterance string
}

// Generate produces the next agent utterance for the turn.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system":  buildSystemPrompt(req.StoreName, req.Tone, req.Hours),
		"history": buildHistoryMessages(req.History),
		"query":   buildUserQuery(req.Context, req.Utterance),
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run response chain: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}

	log.Printf("[agent] generated reply, length=%d", len(reply))
	return reply, nil
}

func buildSystemPrompt(storeName, tone, hours string) string {
	if tone == "" {
		tone = "professional"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a retail call assistant for %s.\n", storeName)
	b.WriteString("VOICE STYLE:\n")
	fmt.Fprintf(&b, "- Tone: %s\n", tone)
	if hours != "" {
		b.WriteString("BUSINESS HOURS:\n")
		b.WriteString(hours)
		b.WriteString("\n")
	}
	b.WriteString("RULES:\n")
	b.WriteString("- Answer ONLY from retrieved knowledge.\n")
	b.WriteString("- Keep responses short and voice-friendly.\n")
	b.WriteString("- If unsure, divert the call to manager.\n")
	b.WriteString("- Never mention internal documents.")
	return b.String()
}

func buildUserQuery(contextSnippets []string, utterance string) string {
	return fmt.Sprintf(
		"Retrieved Knowledge:\n%s\n\nUser Question:\n%s",
		strings.Join(contextSnippets, "\n\n"), utterance,
	)
}

func buildHistoryMessages(messages []session.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case "user":
			history = append(history, schema.UserMessage(msg.Content))
		case "assistant":
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
