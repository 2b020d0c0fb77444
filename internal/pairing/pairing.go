package pairing

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is the port the PC peer listens on unless told otherwise.
const DefaultPort = 8765

// Payload constants written into the QR code by the peer.
const (
	PayloadType     = "xbox_controller"
	PayloadVersion  = 1
	PayloadProtocol = "ws"
)

// Errors
var (
	ErrEmptyHost           = errors.New("host is required")
	ErrInvalidPort         = errors.New("port must be between 1 and 65535")
	ErrUnsupportedPayload  = errors.New("unsupported pairing payload")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
)

// Target is where the handheld connects.
type Target struct {
	Host string
	Port int
}

// Validate checks the host is set and the port is in range.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return ErrEmptyHost
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("%w, got %d", ErrInvalidPort, t.Port)
	}
	return nil
}

// IsZero reports whether no host has been recorded.
func (t Target) IsZero() bool {
	return t.Host == ""
}

// URL returns the WebSocket URL, e.g. ws://192.168.1.5:8765.
func (t Target) URL() string {
	return "ws://" + t.String()
}

// String returns host:port, bracketing IPv6 literals.
func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// payload is the JSON document encoded in the QR code.
type payload struct {
	Type     string `json:"type"`
	Version  int    `json:"version"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}

// Parse accepts the QR payload JSON, a ws:// URL, or a bare host[:port].
func Parse(text string) (Target, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Target{}, ErrEmptyHost
	}

	switch {
	case strings.HasPrefix(text, "{"):
		return parsePayload(text)
	case strings.Contains(text, "://"):
		return parseURL(text)
	default:
		return parseHostPort(text)
	}
}

func parsePayload(text string) (Target, error) {
	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
	}
	if p.Type != PayloadType {
		return Target{}, fmt.Errorf("%w: type %q", ErrUnsupportedPayload, p.Type)
	}
	if p.Version > PayloadVersion {
		return Target{}, fmt.Errorf("%w: version %d", ErrUnsupportedPayload, p.Version)
	}
	if p.Protocol != "" && p.Protocol != PayloadProtocol {
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, p.Protocol)
	}
	if p.Port == 0 {
		p.Port = DefaultPort
	}

	t := Target{Host: p.Host, Port: p.Port}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

func parseURL(text string) (Target, error) {
	u, err := url.Parse(text)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
	}
	if u.Scheme != PayloadProtocol {
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, u.Scheme)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Target{}, fmt.Errorf("%w, got %q", ErrInvalidPort, p)
		}
	}

	t := Target{Host: u.Hostname(), Port: port}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

func parseHostPort(text string) (Target, error) {
	host, portStr, err := net.SplitHostPort(text)
	if err != nil {
		// No port present
		t := Target{Host: strings.Trim(text, "[]"), Port: DefaultPort}
		return t, t.Validate()
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Target{}, fmt.Errorf("%w, got %q", ErrInvalidPort, portStr)
	}

	t := Target{Host: host, Port: port}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

// Encode returns the QR payload for t.
func Encode(t Target) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(payload{
		Type:     PayloadType,
		Version:  PayloadVersion,
		Host:     t.Host,
		Port:     t.Port,
		Protocol: PayloadProtocol,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
