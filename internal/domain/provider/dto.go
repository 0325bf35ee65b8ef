// internal/domain/provider/dto.go
package provider

import "time"

// Profile is the public page of a signal provider
type Profile struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Username     string    `json:"username"`
	Bio          string    `json:"bio,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Followers    int       `json:"followers"`
	Signals      int       `json:"signals"`
	WinRate      float64   `json:"win_rate"`
	FollowedByMe bool      `json:"followed_by_me"`
	CreatedAt    time.Time `json:"created_at"`
}

// FollowResult is returned by follow and unfollow
type FollowResult struct {
	ProviderID string `json:"provider_id"`
	Following  bool   `json:"following"`
	Followers  int    `json:"followers"`
}
