package server

import (
	"github.com/menta2k/overlay-editor/pkg/editor"
)

// Event kinds accepted by the pointer endpoint and the WebSocket
const (
	PointerDown   = "down"
	PointerMove   = "move"
	PointerUp     = "up"
	PointerCancel = "cancel"
	EventWheel    = "wheel"
	EventAngle    = "angle"
)

type PointerRequest struct {
	Type string  `json:"type" validate:"required,oneof=down move up cancel"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type WheelRequest struct {
	DeltaY float64 `json:"delta_y"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type AngleRequest struct {
	Angle float64 `json:"angle" validate:"gte=-360,lte=360"`
}

// PlacementRequest replaces the overlay rectangle, e.g. to restore a saved layout
type PlacementRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
	Angle  float64 `json:"angle" validate:"gte=-360,lte=360"`
}

// EventMessage is one message on the session WebSocket
type EventMessage struct {
	Kind   string  `json:"kind" validate:"required,oneof=down move up cancel wheel angle"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"delta_y"`
	Angle  float64 `json:"angle" validate:"gte=-360,lte=360"`
}

// SessionResponse is the state of a session after a request
type SessionResponse struct {
	ID      string `json:"id"`
	Changed bool   `json:"changed"`
	editor.Snapshot
}
