// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

// State is the connection state of a Controller
type State uint8

const (
	Disconnected State = iota
	Connected
	Unplugged
	ReconnectRetrying
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	case Unplugged:
		return "UNPLUGGED"
	case ReconnectRetrying:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}
