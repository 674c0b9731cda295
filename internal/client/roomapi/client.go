package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"watchsync/internal/core/domain"
)

// Client talks to the room lifecycle API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// CreateRoom asks the server for a fresh room code.
func (c *Client) CreateRoom(ctx context.Context, displayName string) (domain.RoomCode, error) {
	var out struct {
		RoomCode domain.RoomCode `json:"roomCode"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms", map[string]string{"displayName": displayName}, http.StatusCreated, &out); err != nil {
		return "", err
	}
	if !out.RoomCode.Valid() {
		return "", fmt.Errorf("server returned invalid room code %q", out.RoomCode)
	}
	return out.RoomCode, nil
}

// GetRoom returns the room record, or domain.ErrRoomNotFound.
func (c *Client) GetRoom(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	code = code.Normalize()
	if !code.Valid() {
		return nil, domain.ErrRoomNotFound
	}
	var out struct {
		Exists bool         `json:"exists"`
		Room   *domain.Room `json:"room"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/rooms/"+string(code), nil, http.StatusOK, &out)
	if isNotFound(err) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if !out.Exists || out.Room == nil {
		return nil, domain.ErrRoomNotFound
	}
	return out.Room, nil
}

// RoomExists implements session.RoomChecker.
func (c *Client) RoomExists(ctx context.Context, code domain.RoomCode) (bool, error) {
	_, err := c.GetRoom(ctx, code)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) CloseRoom(ctx context.Context, code domain.RoomCode) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/rooms/"+string(code.Normalize())+"/close", nil, http.StatusNoContent, nil)
	if isNotFound(err) {
		return domain.ErrRoomNotFound
	}
	return err
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Health implements session.HealthProber.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
			apiErr.Code = errBody.Code
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
