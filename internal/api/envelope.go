package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Envelope is the standardized API response envelope shared by the backend
// and this client.
type Envelope struct {
	Data       json.RawMessage `json:"data"`
	Error      *ErrorBody      `json:"error,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Metadata   Metadata        `json:"metadata"`
}

// ErrorBody represents a structured error response.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Decode reads a response, closes its body and unmarshals the envelope data
// into dst (which may be nil for operations without a payload). Any failure
// response is normalized to *Error.
func Decode(resp *http.Response, dst any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NetworkError(err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Not the standard envelope. Classify by status only.
		if resp.StatusCode >= 400 {
			return NewError(ErrInternal, resp.StatusCode)
		}
		return NetworkError(fmt.Errorf("decode envelope: %w", err))
	}

	if env.Error != nil {
		return &Error{
			Code:       env.Error.Code,
			Message:    env.Error.Message,
			Fields:     env.Error.Fields,
			HTTPStatus: resp.StatusCode,
		}
	}

	if resp.StatusCode >= 400 {
		return NewError(ErrInternal, resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return NetworkError(fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// DecodePage behaves like Decode but also returns the pagination block.
func DecodePage(resp *http.Response, dst any) (*Pagination, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NetworkError(err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, NewError(ErrInternal, resp.StatusCode)
		}
		return nil, NetworkError(fmt.Errorf("decode envelope: %w", err))
	}

	if env.Error != nil {
		return nil, &Error{
			Code:       env.Error.Code,
			Message:    env.Error.Message,
			Fields:     env.Error.Fields,
			HTTPStatus: resp.StatusCode,
		}
	}

	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return nil, NetworkError(fmt.Errorf("decode data: %w", err))
		}
	}
	return env.Pagination, nil
}
