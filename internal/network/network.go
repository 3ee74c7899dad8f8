// Package network joins a LoRaWAN network and sends uplinks with optional
// acknowledgment. The real stack forwards PHYPayloads through an MQTT
// gateway bridge; the fake stack scripts outcomes for tests.
package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/brocaar/lorawan"
)

var (
	// ErrJoin is returned when OTAA join does not complete. Not retried
	// within a wake cycle.
	ErrJoin = errors.New("join failed")

	// ErrTransmit is returned when an uplink is not delivered (or not
	// acknowledged, for confirmed uplinks).
	ErrTransmit = errors.New("transmit failed")
)

// Downlink is an application message received from the network.
type Downlink struct {
	Port    uint8
	Payload []byte
	Ack     bool
	FCnt    uint32
}

// Stack is the long-range network collaborator.
type Stack interface {
	// Join performs OTAA. Errors wrap ErrJoin.
	Join(ctx context.Context) error

	// Transmit sends payload on port. When confirmed, it blocks until the
	// network acknowledges or the ack window closes. Errors wrap ErrTransmit.
	Transmit(ctx context.Context, payload []byte, port uint8, confirmed bool) error

	// OnMessage registers the handler for downlinks carrying application
	// data. It is invoked from the stack's own goroutine.
	OnMessage(handler func(Downlink))

	// Close tears down the transport.
	Close() error
}

// NonceSource hands out DevNonces that are never reused.
type NonceSource interface {
	NextDevNonce() (uint16, error)
}

// Credentials are the provisioned OTAA identifiers and root key.
type Credentials struct {
	DevEUI  lorawan.EUI64
	JoinEUI lorawan.EUI64
	AppKey  lorawan.AES128Key
}

// ParseCredentials decodes hex-encoded DevEUI, JoinEUI (AppEUI) and AppKey.
func ParseCredentials(devEUI, joinEUI, appKey string) (Credentials, error) {
	var c Credentials
	if err := c.DevEUI.UnmarshalText([]byte(devEUI)); err != nil {
		return c, fmt.Errorf("dev_eui: %w", err)
	}
	if err := c.JoinEUI.UnmarshalText([]byte(joinEUI)); err != nil {
		return c, fmt.Errorf("join_eui: %w", err)
	}
	if err := c.AppKey.UnmarshalText([]byte(appKey)); err != nil {
		return c, fmt.Errorf("app_key: %w", err)
	}
	return c, nil
}
