package models

import "time"

// ClickRecord captures a single visit for analytics. Records are held in
// memory by the click buffer until the next flush.
type ClickRecord struct {
	LinkID    int64
	IP        string
	UserAgent string
	Referer   string
	Country   string
	City      string
	Region    string
	Latitude  float64
	Longitude float64
	Device    string
	Browser   string
	OS        string
}

// ClickEvent is the realtime notification published for every click.
// It is never persisted; ClickCount is the locally computed post-increment
// value and may drift from the stored counter until the next flush lands.
type ClickEvent struct {
	LinkID     int64     `json:"link_id"`
	ShortCode  string    `json:"short_code"`
	UserID     *int64    `json:"user_id,omitempty"`
	ClickCount int64     `json:"click_count"`
	Country    string    `json:"country,omitempty"`
	City       string    `json:"city,omitempty"`
	Device     string    `json:"device,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
