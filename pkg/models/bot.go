package models

// BotConfig describes one bot connection in a bundle's bots.config.
type BotConfig struct {
	ID      string `json:"id"      validate:"required"`
	Name    string `json:"name"`
	Type    string `json:"type"    validate:"required"`
	Address string `json:"address" validate:"required,url"`
	Token   string `json:"token,omitempty"`

	// RateLimit caps outgoing API requests per second; 0 means unlimited.
	RateLimit float64 `json:"rate_limit,omitempty" validate:"gte=0"`
}
