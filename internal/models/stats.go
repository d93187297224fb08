package models

// UsageDetail is the per-model usage reported inside a limit.
type UsageDetail struct {
	ModelCode string `json:"model_code"`
	Usage     int64  `json:"usage"`
}

// LimitInfo is one entry of the quota limits list.
type LimitInfo struct {
	Usage         *int64        `json:"usage,omitempty"`
	CurrentValue  *int64        `json:"current_value,omitempty"`
	Remaining     *int64        `json:"remaining,omitempty"`
	NextResetTime *int64        `json:"next_reset_time,omitempty"`
	TypeName      string        `json:"type_name"`
	NextResetHMS  string        `json:"next_reset_hms,omitempty"`
	UsageDetails  []UsageDetail `json:"usage_details"`
	Percentage    int           `json:"percentage"`
}

// SlotStats aggregates plan limits and the last 24 hours of usage for a slot.
type SlotStats struct {
	Level                 string      `json:"level"`
	Limits                []LimitInfo `json:"limits"`
	TotalModelCalls24h    int64       `json:"total_model_calls_24h"`
	TotalTokens24h        int64       `json:"total_tokens_24h"`
	TotalNetworkSearch24h int64       `json:"total_network_search_24h"`
	TotalWebRead24h       int64       `json:"total_web_read_24h"`
	TotalZread24h         int64       `json:"total_zread_24h"`
	TotalSearchMCP24h     int64       `json:"total_search_mcp_24h"`
}
