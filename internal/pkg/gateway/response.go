package gateway

import (
	"encoding/json"
	"fmt"
)

// Response is the envelope every PipX endpoint answers with.
type Response struct {
	StatusCode   int             `json:"statusCode"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data,omitempty"`
	HasNextPage  *bool           `json:"hasNextPage,omitempty"`
	Token        string          `json:"token,omitempty"`
	UserType     string          `json:"user_type,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
}

// NextPage reports hasNextPage, false when absent.
func (r *Response) NextPage() bool {
	return r != nil && r.HasNextPage != nil && *r.HasNextPage
}

// DecodeData unmarshals the data field into out. Empty data leaves out untouched.
func DecodeData(resp *Response, out any) error {
	if resp == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
