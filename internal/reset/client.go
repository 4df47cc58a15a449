package reset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ClientError is a non-2xx answer from a reset function.
type ClientError struct {
	Status  int
	Code    string
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("reset: %d %s", e.Status, e.Message)
}

// Client calls the reset functions over HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) call(ctx context.Context, function string, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/functions/v1/"+function, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	res, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("reset: decode %d response: %w", res.StatusCode, err)
	}
	if res.StatusCode/100 != 2 {
		cerr := &ClientError{Status: res.StatusCode, Code: out.Error, Message: out.Error}
		if out.Message != "" {
			cerr.Message = out.Message
		}
		return nil, cerr
	}
	return &out, nil
}

func (c *Client) GetQuestions(ctx context.Context, email string) (q1, q2 string, err error) {
	res, err := c.call(ctx, "security-password-reset", Request{Action: ActionGetQuestions, Email: email})
	if err != nil {
		return "", "", err
	}
	return res.Question1, res.Question2, nil
}

func (c *Client) VerifyAnswers(ctx context.Context, email, answer1, answer2 string) error {
	_, err := c.call(ctx, "security-password-reset", Request{
		Action: ActionVerifyAnswers, Email: email, Answer1: answer1, Answer2: answer2,
	})
	return err
}

func (c *Client) VerifyAndReset(ctx context.Context, email, answer1, answer2, password string) error {
	_, err := c.call(ctx, "security-password-reset", Request{
		Action: ActionVerifyAndReset, Email: email, Answer1: answer1, Answer2: answer2, NewPassword: password,
	})
	return err
}

func (c *Client) SendCode(ctx context.Context, email string) error {
	_, err := c.call(ctx, "password-reset", Request{Action: ActionSend, Email: email})
	return err
}

func (c *Client) VerifyCode(ctx context.Context, email, code, password string) error {
	_, err := c.call(ctx, "password-reset", Request{Action: ActionVerify, Email: email, Code: code, NewPassword: password})
	return err
}
