package utils

import (
	"time"
)

// ContextKey is the type used for request-scoped context values.
type ContextKey string

// Request-scoped context keys set by handlers and consumed by flows.
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TenantIDKey   ContextKey = "tenant_id"
	UserIDKey     ContextKey = "user_id"
	UserRoleKey   ContextKey = "user_role"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)

// Token time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour
)

// HTTP constants
const (
	// CORSMaxAge is how long browsers may cache preflight responses, in seconds
	CORSMaxAge = 86400
)

// Decision engine constants
const (
	// DefaultCurrency is the currency assumed for requests that do not carry one
	DefaultCurrency = "USD"

	// DefaultMaxRiskScore is the auto-approval risk ceiling when no rule supplies one
	DefaultMaxRiskScore = 60.0

	// DefaultMinAIConfidence is the advisory confidence floor when no rule supplies one
	DefaultMinAIConfidence = 0.75

	// DefaultMaxDiscountPercentage is the auto-approval discount ceiling when no rule supplies one
	DefaultMaxDiscountPercentage = 15.0

	// MaxAutoApprovalOrderValue is the basket ceiling above which auto-approval is never granted
	MaxAutoApprovalOrderValue = 100_000.0

	// MaxAutoApprovalLineItems is the line-item count ceiling for auto-approval
	MaxAutoApprovalLineItems = 50
)
