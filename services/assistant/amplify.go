package assistantsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/chat"
)

const completionsEndpoint = "/chat/completions"

// amplifyService talks to the campus Amplify chat-completion API.
type amplifyService struct {
	conf   *core.Config
	client *http.Client
	logger core.Logger
}

var _ chat.Assistant = (*amplifyService)(nil)

func NewAmplifyService(conf *core.Config, logger core.Logger) chat.Assistant {
	return &amplifyService{
		conf:   conf,
		client: &http.Client{Timeout: conf.Amplify.Timeout},
		logger: logger,
	}
}

type (
	completionMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	completionRequest struct {
		Model       string              `json:"model"`
		Messages    []completionMessage `json:"messages"`
		Temperature float64             `json:"temperature"`
	}

	completionResponse struct {
		Choices []struct {
			Message completionMessage `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
)

func (svc *amplifyService) Complete(ctx context.Context, messages []chat.Message) (string, error) {
	payload := completionRequest{
		Model:       svc.conf.Amplify.Model,
		Messages:    make([]completionMessage, 0, len(messages)),
		Temperature: 0.7,
	}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, completionMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshalling completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.conf.Amplify.BaseURL+completionsEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+svc.conf.Amplify.APIKey)

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling amplify")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer res.Body.Close()

	resBody, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "reading amplify response")
	}

	var parsed completionResponse
	if err = json.Unmarshal(resBody, &parsed); err != nil {
		return "", errors.Wrap(err, "decoding amplify response")
	}
	if res.StatusCode >= http.StatusBadRequest {
		msg := parsed.Error.Message
		if msg == "" {
			msg = string(resBody)
		}
		return "", errors.Errorf("amplify - status: %d - %s", res.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("amplify returned no choices")
	}
	answer := parsed.Choices[0].Message.Content
	if answer == "" {
		return "", errors.New("amplify returned an empty completion")
	}

	svc.logger.Debug(fmt.Sprintf("amplify completion ok: %d prompt messages", len(messages)))
	return answer, nil
}
