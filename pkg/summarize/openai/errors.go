package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhuss/tradelens/pkg/api"
)

// MapHTTPError converts a non-2xx model response into an APIError.
// Failures on the model side surface as upstream errors; a 400 means we
// built a bad request and is reported as a server error.
func MapHTTPError(resp *http.Response) *api.APIError {
	message := ExtractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "model backend authentication failed"
		}
		return api.NewServerError(message)

	case resp.StatusCode == http.StatusNotFound:
		if message == "" {
			message = "model not found"
		}
		return api.NewServerError(message)

	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "model backend rate limit exceeded"
		}
		return api.NewTooManyRequestsError(message)

	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("model backend error (HTTP %d)", resp.StatusCode)
		}
		return api.NewUpstreamError(message)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected model backend response (HTTP %d)", resp.StatusCode)
		}
		return api.NewServerError(message)
	}
}

// MapNetworkError converts a transport failure into an upstream APIError.
func MapNetworkError(err error) *api.APIError {
	return api.NewUpstreamError(fmt.Sprintf("model backend connection error: %s", err.Error()))
}

// ExtractErrorMessage parses body as a ChatErrorResponse and returns its
// message, falling back to the trimmed raw body.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
