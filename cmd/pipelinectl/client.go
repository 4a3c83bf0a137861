package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// apiClient speaks the worker's {success, code, message, data} envelope.
type apiClient struct {
	baseURL string
	token   string
	timeout time.Duration
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func newAPIClient(baseURL, token string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

func (c *apiClient) get(path string, out interface{}) error {
	return c.do(fiber.Get(c.baseURL+path), out)
}

func (c *apiClient) post(path string, body interface{}, out interface{}) error {
	agent := fiber.Post(c.baseURL + path)
	if body != nil {
		agent.JSONEncoder(json.Marshal).JSON(body)
	}
	return c.do(agent, out)
}

func (c *apiClient) do(agent *fiber.Agent, out interface{}) error {
	agent.Timeout(c.timeout)
	if c.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &apiError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	if status >= fiber.StatusBadRequest || !env.Success {
		return &apiError{Status: status, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
