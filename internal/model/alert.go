package model

// AlertKind indicates which threshold was crossed.
type AlertKind string

const (
	AlertLow   AlertKind = "LOW"
	AlertHigh  AlertKind = "HIGH"
	AlertWatch AlertKind = "WATCH"
)

// AlertEvent is a fired threshold crossing.
type AlertEvent struct {
	Kind      AlertKind `json:"kind"`
	Name      string    `json:"name"`
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Threshold float64   `json:"threshold"`
}
