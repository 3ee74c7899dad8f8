package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Config configures the MQTT gateway bridge stack.
type Config struct {
	Broker      string
	ClientID    string
	GatewayID   string
	Credentials Credentials
	JoinTimeout time.Duration
	AckTimeout  time.Duration
}

// UplinkTopic is where uplink frames are published.
func UplinkTopic(gatewayID string) string {
	return fmt.Sprintf("gateway/%s/event/up", gatewayID)
}

// DownlinkTopic is where the network server sends downlink frames.
func DownlinkTopic(gatewayID string) string {
	return fmt.Sprintf("gateway/%s/command/down", gatewayID)
}

// Frame is the JSON envelope exchanged with the gateway bridge.
// PHYPayload is base64 on the wire.
type Frame struct {
	GatewayID  string `json:"gatewayID"`
	PHYPayload []byte `json:"phyPayload"`
	Time       string `json:"time,omitempty"`
}

// MQTTStack runs OTAA and data uplinks through a gateway bridge on MQTT.
type MQTTStack struct {
	cfg    Config
	nonces NonceSource
	logger *zap.Logger

	client paho.Client

	mu      sync.Mutex
	session *Session
	handler func(Downlink)

	joinCh chan []byte
	ackCh  chan struct{}
}

// NewMQTTStack creates an unconnected stack. The broker connection is made
// by Join so a node that never joins never powers the link up.
func NewMQTTStack(cfg Config, nonces NonceSource, logger *zap.Logger) *MQTTStack {
	return &MQTTStack{
		cfg:     cfg,
		nonces:  nonces,
		logger:  logger,
		session: NewSession(cfg.Credentials),
		joinCh:  make(chan []byte, 4),
		ackCh:   make(chan struct{}, 1),
	}
}

func (s *MQTTStack) connect() error {
	if s.client != nil && s.client.IsConnected() {
		return nil
	}

	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(false).
		SetCleanSession(true).
		SetConnectTimeout(10 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	topic := DownlinkTopic(s.cfg.GatewayID)
	sub := client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		s.handleFrame(msg.Payload())
	})
	if !sub.WaitTimeout(5 * time.Second) {
		client.Disconnect(250)
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := sub.Error(); err != nil {
		client.Disconnect(250)
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s.client = client
	return nil
}

// handleFrame runs on the paho callback goroutine.
func (s *MQTTStack) handleFrame(raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.logger.Warn("bad downlink envelope", zap.Error(err))
		return
	}

	s.mu.Lock()
	joined := s.session.Joined()
	var (
		dl  Downlink
		err error
	)
	if joined {
		dl, err = s.session.Downlink(f.PHYPayload)
	}
	handler := s.handler
	s.mu.Unlock()

	if !joined {
		select {
		case s.joinCh <- f.PHYPayload:
		default:
			s.logger.Warn("join accept queue full, dropping frame")
		}
		return
	}
	if errors.Is(err, errNotForUs) {
		return
	}
	if err != nil {
		s.logger.Warn("discarding downlink", zap.Error(err))
		return
	}

	if dl.Ack {
		select {
		case s.ackCh <- struct{}{}:
		default:
		}
	}
	if dl.Port > 0 && len(dl.Payload) > 0 && handler != nil {
		handler(dl)
	}
}

func (s *MQTTStack) publish(phy []byte) error {
	payload, err := json.Marshal(Frame{
		GatewayID:  s.cfg.GatewayID,
		PHYPayload: phy,
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("format frame: %w", err)
	}

	// QoS 1 so the bridge has the frame before we start the RX wait.
	token := s.client.Publish(UplinkTopic(s.cfg.GatewayID), 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Join sends a JoinRequest and waits for a valid JoinAccept.
func (s *MQTTStack) Join(ctx context.Context) error {
	if err := s.connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrJoin, err)
	}

	nonce, err := s.nonces.NextDevNonce()
	if err != nil {
		return fmt.Errorf("%w: dev nonce: %v", ErrJoin, err)
	}

	s.mu.Lock()
	req, err := s.session.JoinRequest(nonce)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJoin, err)
	}

	drain(s.joinCh)
	if err := s.publish(req); err != nil {
		return fmt.Errorf("%w: %v", ErrJoin, err)
	}
	s.logger.Info("join request sent", zap.Uint16("dev_nonce", nonce))

	timer := time.NewTimer(s.cfg.JoinTimeout)
	defer timer.Stop()
	for {
		select {
		case b := <-s.joinCh:
			s.mu.Lock()
			err := s.session.AcceptJoin(b)
			addr := s.session.DevAddr()
			s.mu.Unlock()
			if err != nil {
				s.logger.Debug("ignoring frame while joining", zap.Error(err))
				continue
			}
			s.logger.Info("join accepted", zap.String("dev_addr", addr.String()))
			return nil
		case <-timer.C:
			return fmt.Errorf("%w: no join accept within %v", ErrJoin, s.cfg.JoinTimeout)
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrJoin, ctx.Err())
		}
	}
}

// Transmit sends an uplink and, when confirmed, waits for the ACK.
func (s *MQTTStack) Transmit(ctx context.Context, payload []byte, port uint8, confirmed bool) error {
	if s.client == nil || !s.client.IsConnected() {
		return fmt.Errorf("%w: not connected", ErrTransmit)
	}

	s.mu.Lock()
	phy, err := s.session.Uplink(payload, port, confirmed)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransmit, err)
	}

	select {
	case <-s.ackCh:
	default:
	}
	if err := s.publish(phy); err != nil {
		return fmt.Errorf("%w: %v", ErrTransmit, err)
	}
	if !confirmed {
		return nil
	}

	timer := time.NewTimer(s.cfg.AckTimeout)
	defer timer.Stop()
	select {
	case <-s.ackCh:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: no ack within %v", ErrTransmit, s.cfg.AckTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTransmit, ctx.Err())
	}
}

// OnMessage registers the downlink handler.
func (s *MQTTStack) OnMessage(handler func(Downlink)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Close disconnects from the broker.
func (s *MQTTStack) Close() error {
	if s.client != nil {
		s.client.Disconnect(1000)
		s.client = nil
	}
	return nil
}

func drain(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
