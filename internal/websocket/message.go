package websocket

import "encoding/json"

// Message is one inbound client frame. Data is decoded per event by the
// hub's signal handlers.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Envelope is one outbound frame.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func encodeEnvelope(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data})
}
