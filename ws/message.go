package ws

import (
	"encoding/json"

	"saythat-server/game"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the raw payload alongside the type.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-Server message payloads ---

// SubscribeMsg moves the projector to another scene.
type SubscribeMsg struct {
	Type  string `json:"type"`
	Scene string `json:"scene"`
}

// --- Server-to-Client messages ---

// SnapshotMsg is sent on connect and after every subscribe.
type SnapshotMsg struct {
	Type     string             `json:"type"`
	Snapshot game.SceneSnapshot `json:"snapshot"`
}

// UpdateMsg carries one changed aggregate. Type is one of total_score,
// total_langs, summary or guess; Key names the noun or guess log entry.
type UpdateMsg struct {
	Type  string          `json:"type"`
	Scene string          `json:"scene"`
	Key   string          `json:"key,omitempty"`
	Value json.RawMessage `json:"value"`
}

// ErrorMsg is sent when a client message is invalid.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
