// Package config loads the node's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/scan-node/internal/network"
	"github.com/sweeney/scan-node/internal/node"
	"github.com/sweeney/scan-node/internal/scan"
	"github.com/sweeney/scan-node/internal/store"
)

// Store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config is the full node configuration.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Scan    ScanConfig    `yaml:"scan"`
	LoRaWAN LoRaWANConfig `yaml:"lorawan"`
	Button  ButtonConfig  `yaml:"button"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// NodeConfig holds the duty-cycle timing.
type NodeConfig struct {
	IdleTicks  int           `yaml:"idle_ticks"`
	Tick       time.Duration `yaml:"tick"`
	Sleep      time.Duration `yaml:"sleep"`
	MaxResults int           `yaml:"max_results"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Backend   string      `yaml:"backend"`
	Dir       string      `yaml:"dir"`
	Namespace string      `yaml:"namespace"`
	Redis     RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ScanConfig struct {
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoRaWANConfig holds OTAA credentials and the gateway bridge settings.
// Keys are hex strings.
type LoRaWANConfig struct {
	DevEUI      string        `yaml:"dev_eui"`
	JoinEUI     string        `yaml:"join_eui"`
	AppKey      string        `yaml:"app_key"`
	Broker      string        `yaml:"broker"`
	GatewayID   string        `yaml:"gateway_id"`
	ClientID    string        `yaml:"client_id"`
	Port        uint8         `yaml:"port"`
	Confirmed   bool          `yaml:"confirmed"`
	JoinTimeout time.Duration `yaml:"join_timeout"`
	AckTimeout  time.Duration `yaml:"ack_timeout"`
	MTU         int           `yaml:"mtu"`
}

// ButtonConfig describes the user button line. The same line is armed as
// the external wake source.
type ButtonConfig struct {
	Chip        string        `yaml:"chip"`
	Line        int           `yaml:"line"`
	ActiveLevel int           `yaml:"active_level"`
	Debounce    time.Duration `yaml:"debounce"`
	LongPress   time.Duration `yaml:"long_press"`
	ClickWindow time.Duration `yaml:"click_window"`
}

type HTTPConfig struct {
	// Addr is the status server address. Empty disables it.
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	n := node.DefaultConfig()
	return Config{
		Node: NodeConfig{
			IdleTicks:  n.IdleTicks,
			Tick:       n.Tick,
			Sleep:      n.Sleep,
			MaxResults: n.MaxResults,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Store: StoreConfig{
			Backend:   BackendFile,
			Dir:       "/var/lib/scan-node",
			Namespace: store.DefaultNamespace,
			Redis:     RedisConfig{Addr: "127.0.0.1:6379"},
		},
		Scan: ScanConfig{
			Command: scan.DefaultCommand,
			Timeout: 10 * time.Second,
		},
		LoRaWAN: LoRaWANConfig{
			DevEUI:      "0000000000000000",
			JoinEUI:     "0000000000000000",
			AppKey:      "00000000000000000000000000000000",
			Broker:      "tcp://127.0.0.1:1883",
			GatewayID:   "0000000000000000",
			ClientID:    "scan-node",
			Port:        n.Port,
			Confirmed:   n.Confirmed,
			JoinTimeout: 10 * time.Second,
			AckTimeout:  5 * time.Second,
			MTU:         n.MTU,
		},
		Button: ButtonConfig{
			Chip:        "gpiochip0",
			Line:        n.WakeLine,
			ActiveLevel: n.WakeActiveLevel,
			Debounce:    10 * time.Millisecond,
			LongPress:   1500 * time.Millisecond,
			ClickWindow: 300 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults and validates the result. An empty
// path returns the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the node cannot run with.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Node.IdleTicks <= 0 {
		add("node.idle_ticks must be positive")
	}
	if c.Node.Tick <= 0 {
		add("node.tick must be positive")
	}
	if c.Node.Sleep <= 0 {
		add("node.sleep must be positive")
	}
	if idle := time.Duration(c.Node.IdleTicks) * c.Node.Tick; c.Node.Sleep > 0 && idle >= c.Node.Sleep {
		add("idle window %v must be shorter than node.sleep %v", idle, c.Node.Sleep)
	}
	if c.Node.MaxResults <= 0 || c.Node.MaxResults > 255 {
		add("node.max_results must be between 1 and 255")
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Dir == "" {
			add("store.dir is required for the file backend")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			add("store.redis.addr is required for the redis backend")
		}
	default:
		add("store.backend %q is not one of %s, %s", c.Store.Backend, BackendFile, BackendRedis)
	}
	if c.Store.Namespace == "" {
		add("store.namespace is required")
	}

	if c.Scan.Command == "" {
		add("scan.command is required")
	}

	if _, err := c.Credentials(); err != nil {
		errs = append(errs, err)
	}
	if c.LoRaWAN.Broker == "" {
		add("lorawan.broker is required")
	}
	if c.LoRaWAN.Port == 0 || c.LoRaWAN.Port > 223 {
		add("lorawan.port must be between 1 and 223")
	}
	if c.LoRaWAN.MTU < node.MinMTU {
		add("lorawan.mtu must be at least %d", node.MinMTU)
	} else if limit := node.UplinkCapacity(c.LoRaWAN.MTU); c.Node.MaxResults > limit {
		add("node.max_results %d does not fit lorawan.mtu %d (at most %d)", c.Node.MaxResults, c.LoRaWAN.MTU, limit)
	}
	if c.LoRaWAN.JoinTimeout <= 0 || c.LoRaWAN.AckTimeout <= 0 {
		add("lorawan timeouts must be positive")
	}

	if c.Button.ActiveLevel != 0 && c.Button.ActiveLevel != 1 {
		add("button.active_level must be 0 or 1")
	}
	if c.Button.Line < 0 {
		add("button.line must not be negative")
	}

	return errors.Join(errs...)
}

// Credentials parses the hex OTAA keys.
func (c Config) Credentials() (network.Credentials, error) {
	return network.ParseCredentials(c.LoRaWAN.DevEUI, c.LoRaWAN.JoinEUI, c.LoRaWAN.AppKey)
}

// NodeConfig returns the orchestrator settings.
func (c Config) NodeConfig() node.Config {
	return node.Config{
		IdleTicks:       c.Node.IdleTicks,
		Tick:            c.Node.Tick,
		Sleep:           c.Node.Sleep,
		MaxResults:      c.Node.MaxResults,
		MTU:             c.LoRaWAN.MTU,
		Port:            c.LoRaWAN.Port,
		Confirmed:       c.LoRaWAN.Confirmed,
		WakeLine:        c.Button.Line,
		WakeActiveLevel: c.Button.ActiveLevel,
	}
}
