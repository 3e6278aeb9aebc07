package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/starkhealth/backend/internal/healthdata"
	"github.com/starkhealth/backend/internal/telemetry/metrics"
	"github.com/starkhealth/backend/internal/telemetry/tracing"

	"github.com/sashabaranov/go-openai"
)

const systemPromptTemplate = `You are a personal health advisor for Stark Health, an integrated health data platform combining wearable recovery data (recovery, HRV, sleep, strain), smart scale data (weight, body composition) and workout logs.

%s

GUIDELINES:
- Be concise but thorough. Use bullet points and structure.
- Reference specific data points and dates when answering.
- Provide actionable, evidence-based recommendations.
- Highlight correlations between metrics (e.g., sleep quality → recovery).
- Professional, encouraging tone — like a knowledgeable coach.
- If a metric is unavailable, say so explicitly. Never estimate or invent a value.
- Keep responses under 250 words unless asked for detailed analysis.
- Use plain text, no markdown headers. Use bullet points (•) for lists.`

type cachedDataSource interface {
	CachedData(ctx context.Context, userID string) ([]healthdata.DayRecord, []healthdata.WorkoutRecord, error)
}

type completionStreamer interface {
	CreateChatCompletionStream(
		ctx context.Context, request openai.ChatCompletionRequest,
	) (*openai.ChatCompletionStream, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Service grounds every chat turn in the user's cached health data
// (whatever is cached, no freshness check) and streams the model's
// answer chunk by chunk.
type Service struct {
	openAIClient completionStreamer
	source       cachedDataSource
	model        string
	metrics      *metrics.Manager
}

func NewService(
	openAIClient completionStreamer,
	source cachedDataSource,
	model string,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		openAIClient: openAIClient,
		source:       source,
		model:        model,
		metrics:      metricsManager,
	}
}

// Chat streams the assistant's reply, invoking onChunk for every piece
// of content as it arrives.
func (s *Service) Chat(
	ctx context.Context,
	userID string,
	messages []Message,
	onChunk func(chunk string) error,
) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "assistant.chat")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if len(messages) == 0 {
		return errors.New("no messages")
	}

	days, workouts, err := s.source.CachedData(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cached health data: %w", err)
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chatMessages = append(chatMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPromptTemplate, BuildContext(days, workouts)),
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	stream, err := s.openAIClient.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: chatMessages,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()

	s.metrics.CounterChatMessages.Inc()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive stream chunk: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		if content := response.Choices[0].Delta.Content; content != "" {
			if err := onChunk(content); err != nil {
				return err
			}
		}
	}
}
