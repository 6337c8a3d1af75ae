package panel

import (
	"encoding/json"
	"errors"
	"fmt"

	"marzadmin/internal/pkg/httpclient"
)

// APIError is a non-success response from the panel. Detail carries the
// panel's own "detail" text when the body had one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("panel api: %s (status %d)", e.Detail, e.Status)
	}
	return fmt.Sprintf("panel api: status %d", e.Status)
}

// Detail extracts the panel's detail text from an error chain, or returns
// the empty string for transport-level failures.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// IsNotFound reports whether the error is a 404 from the panel.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

func apiError(resp *httpclient.Response) error {
	var body struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(resp.Body, &body)
	return &APIError{Status: resp.Status, Detail: body.Detail}
}
