// internal/domain/signal/dto.go
package signal

import "time"

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

type Status string

const (
	StatusOpen    Status = "open"
	StatusHit     Status = "hit"
	StatusStopped Status = "stopped"
	StatusClosed  Status = "closed"
)

// Signal is a trade idea posted by a signal provider
type Signal struct {
	ID           string    `json:"id"`
	ProviderID   string    `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	Pair         string    `json:"pair"`
	Direction    Direction `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	Description  string    `json:"description,omitempty"`
	ChartURL     string    `json:"chart_url,omitempty"`
	Status       Status    `json:"status"`
	Likes        int       `json:"likes"`
	Comments     int       `json:"comments"`
	LikedByMe    bool      `json:"liked_by_me"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateSignalRequest is posted as multipart form data
type CreateSignalRequest struct {
	Pair        string
	Direction   Direction
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	Description string

	// Optional chart screenshot
	ChartName string
	Chart     []byte
}

type Comment struct {
	ID        string    `json:"id"`
	SignalID  string    `json:"signal_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCommentRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}

// Page is one page of a paginated list
type Page[T any] struct {
	Items       []T
	Page        int
	HasNextPage bool
}

type ListFilters struct {
	Page  int
	Limit int
	Pair  string
}
