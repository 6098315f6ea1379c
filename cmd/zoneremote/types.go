package main

import (
	"github.com/zoneremote/zoneremote-go/pkg/history"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Remote  string         `json:"remote"`
	Paired  bool           `json:"paired"`
	Core    *wire.CoreInfo `json:"core,omitempty"`
	Zones   int            `json:"zones"`
}

// ZoneListResponse is the response for GET /api/v1/zones.
type ZoneListResponse struct {
	Zones []zone.Zone `json:"zones"`
}

// CommandResponse is the response for POST /api/v1/zones/{zone}/commands/{command}.
type CommandResponse struct {
	Command string `json:"command"`
	Result  string `json:"result"`
	ZoneID  string `json:"zone_id"`
	Zone    string `json:"zone"`
}

// HistoryResponse is the response for GET /api/v1/history.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Total   int             `json:"total"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
