package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/policy"
)

const (
	// historyLimit bounds how much of the conversation is replayed to the assistant.
	historyLimit = 20
	// policyLimit bounds how many relevant policies are injected into the prompt.
	policyLimit = 3

	systemPreamble = "You are the campus program planning assistant. You help students " +
		"and staff plan campus programs: workshops, fundraisers, socials, meetings and " +
		"conferences. Give practical, step-by-step planning advice, propose checklists " +
		"with due dates, and point out the campus policies quoted below when they apply. " +
		"Keep answers short and concrete."
)

var (
	// errors
	ErrNotFound      = errors.New("conversation not found")
	ErrAssistantDown = errors.New("assistant is unavailable")
)

type (
	Repository interface {
		CreateConversation(ctx context.Context, conv Conversation) (Conversation, error)
		GetConversationByID(ctx context.Context, id string) (Conversation, error)
		// QueryConversationsForUser returns conversations newest-first.
		QueryConversationsForUser(ctx context.Context, userID string) ([]Conversation, error)
		UpdateConversation(ctx context.Context, conv Conversation) (Conversation, error)
		DeleteConversationsByID(ctx context.Context, ids ...string) error
	}

	// Assistant is a chat-completion backend (the Amplify API in production).
	Assistant interface {
		Complete(ctx context.Context, messages []Message) (string, error)
	}

	// PolicyFinder surfaces catalog entries relevant to a prompt.
	PolicyFinder interface {
		Relevant(text string, limit int) []policy.Match
	}

	Service struct {
		repo      Repository
		assistant Assistant
		policies  PolicyFinder
		logger    core.Logger
	}
)

func NewService(repo Repository, assistant Assistant, policies PolicyFinder, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		assistant: assistant,
		policies:  policies,
		logger:    logger,
	}
}

// Send appends one user turn to the conversation (creating it if needed),
// asks the assistant for a completion and persists both turns.
// The user turn is kept even when the assistant fails.
func (svc *Service) Send(ctx context.Context, actorID string, req SendRequest) (Reply, error) {
	now := time.Now().UTC()

	var conv Conversation
	var err error
	if req.ConversationID != "" {
		conv, err = svc.Get(ctx, req.ConversationID, actorID)
		if err != nil {
			return Reply{}, err
		}
	} else {
		conv, err = svc.repo.CreateConversation(ctx, Conversation{
			UserID:    actorID,
			Title:     titleFrom(req.Message),
			Messages:  []Message{},
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return Reply{}, err
		}
	}

	conv.Messages = append(conv.Messages, Message{Role: RoleUser, Content: req.Message, CreatedAt: now})
	conv.UpdatedAt = now
	if conv, err = svc.repo.UpdateConversation(ctx, conv); err != nil {
		return Reply{}, err
	}

	answer, err := svc.assistant.Complete(ctx, svc.buildPrompt(conv))
	if err != nil {
		svc.logger.Error(fmt.Sprintf("assistant completion: %v", err), err)
		return Reply{}, ErrAssistantDown
	}

	reply := Message{Role: RoleAssistant, Content: answer, CreatedAt: time.Now().UTC()}
	conv.Messages = append(conv.Messages, reply)
	conv.UpdatedAt = reply.CreatedAt
	if _, err = svc.repo.UpdateConversation(ctx, conv); err != nil {
		return Reply{}, err
	}

	return Reply{ConversationID: conv.ID, Message: reply}, nil
}

// Get returns the conversation; only its owner may read it.
func (svc *Service) Get(ctx context.Context, id, actorID string) (Conversation, error) {
	conv, err := svc.repo.GetConversationByID(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if conv.UserID != actorID {
		return Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (svc *Service) QueryForUser(ctx context.Context, actorID string) ([]Conversation, error) {
	return svc.repo.QueryConversationsForUser(ctx, actorID)
}

func (svc *Service) Delete(ctx context.Context, id, actorID string) error {
	if _, err := svc.Get(ctx, id, actorID); err != nil {
		return err
	}
	return svc.repo.DeleteConversationsByID(ctx, id)
}

// buildPrompt assembles the assistant request: preamble + relevant policy
// excerpts + the conversation tail.
func (svc *Service) buildPrompt(conv Conversation) []Message {
	tail := conv.Messages
	if len(tail) > historyLimit {
		tail = tail[len(tail)-historyLimit:]
	}

	system := systemPreamble
	if len(tail) > 0 {
		latest := tail[len(tail)-1].Content
		if matches := svc.policies.Relevant(latest, policyLimit); len(matches) > 0 {
			var b strings.Builder
			b.WriteString("\n\nRelevant campus policies:\n")
			for _, m := range matches {
				fmt.Fprintf(&b, "- [%s] %s: %s\n", strings.ToUpper(m.Policy.Code), m.Policy.Title, m.Policy.Body)
			}
			system += b.String()
		}
	}

	prompt := make([]Message, 0, len(tail)+1)
	prompt = append(prompt, Message{Role: RoleSystem, Content: system})
	prompt = append(prompt, tail...)
	return prompt
}
