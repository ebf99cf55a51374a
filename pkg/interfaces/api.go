package interfaces

import "time"

// APIUser represents an authenticated API user.
type APIUser struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        UserRole   `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// APIKeyInfo contains information about an API key.
type APIKeyInfo struct {
	KeyID       string     `json:"key_id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// RateLimitInfo contains the current rate limit status for a client.
type RateLimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetTime  time.Time     `json:"reset_time"`
	WindowSize time.Duration `json:"window_size"`
}

// RateLimit defines a rate limiting configuration.
type RateLimit struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	WindowSize        time.Duration `json:"window_size"`
}

// WebSocketMessage is the envelope pushed to every subscribed client.
type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Alert is a threshold or anomaly notification pushed over the
// opportunity stream alongside opportunity and status updates.
type Alert struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// UserRole orders API access from read-only to full control.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleOperator UserRole = "operator"
	UserRoleViewer   UserRole = "viewer"
)

// MessageType tags the payload carried by a WebSocketMessage.
type MessageType string

const (
	MessageTypeOpportunity MessageType = "opportunity"
	MessageTypeMetrics     MessageType = "metrics"
	MessageTypeStatus      MessageType = "status"
	MessageTypeAlert       MessageType = "alert"
)
