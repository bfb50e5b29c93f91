package config

import "time"

// Application constants
const (
	AppName = "CO2 Emission Forecast"
	AppSlug = "co2forecast"

	DefaultMaxUploadBytes = 20 << 20
	DefaultSessionTTL     = 2 * time.Hour
	DefaultSweepInterval  = 5 * time.Minute

	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second
	WebSocketWriteWait  = 10 * time.Second
)
