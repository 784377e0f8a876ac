package events

import (
	"encoding/json"
	"time"
)

const (
	TypePing             = "ping"
	TypeDataRefreshed    = "data_refreshed"
	TypeFetchFailed      = "fetch_failed"
	TypeCacheInvalidated = "cache_invalidated"
	TypeConfigReloaded   = "config_reloaded"
)

// Version of the envelope below.
const Version = 1

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   Version,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
