// Package credential produces the opaque reference printed on a ticket. The
// reference is handed to the rendering service, which turns it into a QR
// image; rendering itself happens elsewhere.
package credential

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Payload is what a credential reference encodes.
type Payload struct {
	TicketID string `json:"ticketId"`
	EventID  string `json:"eventId"`
	Seat     string `json:"seat"`
}

type Issuer interface {
	Issue(ctx context.Context, payload Payload) (string, error)
}

var ErrInvalidCredential = errors.New("invalid credential")

// MACIssuer signs payloads with a keyed BLAKE2b-256 MAC. References look like
// base64url(payload) "." base64url(mac).
type MACIssuer struct {
	key []byte
}

func NewMACIssuer(secret string) (*MACIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("credential secret must be at least 16 bytes")
	}
	if len(secret) > blake2b.Size {
		sum := blake2b.Sum256([]byte(secret))
		secret = string(sum[:])
	}
	return &MACIssuer{key: []byte(secret)}, nil
}

func (i *MACIssuer) Issue(ctx context.Context, payload Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if payload.TicketID == "" || payload.EventID == "" || payload.Seat == "" {
		return "", fmt.Errorf("issue credential: incomplete payload %+v", payload)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal credential payload: %w", err)
	}
	mac, err := i.sign(body)
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(body) + "." + enc.EncodeToString(mac), nil
}

// Open checks ref's MAC and returns the payload it carries.
func (i *MACIssuer) Open(ref string) (Payload, error) {
	enc := base64.RawURLEncoding
	rawBody, rawMAC, ok := strings.Cut(ref, ".")
	if !ok {
		return Payload{}, ErrInvalidCredential
	}
	body, err := enc.DecodeString(rawBody)
	if err != nil {
		return Payload{}, ErrInvalidCredential
	}
	mac, err := enc.DecodeString(rawMAC)
	if err != nil {
		return Payload{}, ErrInvalidCredential
	}

	want, err := i.sign(body)
	if err != nil {
		return Payload{}, err
	}
	if subtle.ConstantTimeCompare(mac, want) != 1 {
		return Payload{}, ErrInvalidCredential
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Payload{}, ErrInvalidCredential
	}
	return payload, nil
}

func (i *MACIssuer) sign(body []byte) ([]byte, error) {
	h, err := blake2b.New256(i.key)
	if err != nil {
		return nil, fmt.Errorf("init mac: %w", err)
	}
	h.Write(body)
	return h.Sum(nil), nil
}
