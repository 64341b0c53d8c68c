package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"
)

var (
	// ErrEmptyQuery is returned for a blank question.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrChatFailed wraps any failure of the chat service itself.
	ErrChatFailed = errors.New("chat completion failed")
)

const systemPrompt = `You are a marketing performance analyst. You are given a daily table of advertising
results for two platforms, Meta and TikTok, most recent day first. Each row has, per platform:
clicks, impressions, cost, conversions, ctr (%), cpm, cpc, cpa and cvr (%). A platform with all
zero values on a day had no data for that day. Answer the user's question using only this table.
Be concise and quote the numbers you rely on.`

// ChatRequest is one question about a performance table
type ChatRequest struct {
	Query        string
	History      []domain.ChatTurn
	Rows         []domain.Row
	LookbackDays int
}

// ChatService forwards a question plus the table to the language model
type ChatService struct {
	client     domain.ChatClient
	reconciler *Reconciler
	maxHistory int
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewChatService(
	client domain.ChatClient,
	reconciler *Reconciler,
	maxHistory int,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ChatService {
	return &ChatService{
		client:     client,
		reconciler: reconciler,
		maxHistory: maxHistory,
		logger:     logger,
		metrics:    metrics,
	}
}

// Ask returns the model's reply verbatim. Without rows in the request the table is
// recomputed for the requested lookback first.
func (s *ChatService) Ask(ctx context.Context, req ChatRequest) (string, error) {
	log := s.logger.WithContext(ctx)
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return "", ErrEmptyQuery
	}

	rows := req.Rows
	if len(rows) == 0 {
		report, err := s.reconciler.Reconcile(ctx, domain.NormalizeLookback(req.LookbackDays))
		if err != nil {
			return "", err
		}
		rows = report.Table.Rows()
	}

	messages, err := s.buildMessages(req, rows)
	if err != nil {
		return "", err
	}

	reply, err := s.client.Complete(ctx, messages)
	if err != nil {
		s.metrics.RecordChatRequest("failed")
		log.WithError(err).Error("Chat completion failed")
		return "", fmt.Errorf("%w: %w", ErrChatFailed, err)
	}

	s.metrics.RecordChatRequest("success")
	log.WithFields(map[string]any{
		"rows":     len(rows),
		"history":  len(messages) - 2,
		"duration": time.Since(start),
	}).Info("Chat request answered")

	return reply, nil
}

// buildMessages lays out system context, trimmed history, then the new question
func (s *ChatService) buildMessages(req ChatRequest, rows []domain.Row) ([]domain.ChatMessage, error) {
	table, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize table: %w", err)
	}

	history := domain.ConversationHistory(req.History, s.maxHistory)

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: systemPrompt + "\n\nTable (JSON):\n" + string(table),
	})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: req.Query})

	return messages, nil
}
