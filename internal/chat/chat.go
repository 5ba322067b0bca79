// Package chat implements the out-of-band text/sticker subchannel that
// rides alongside battle traffic on the same transport, plus the Host's
// fan-out rules for reflecting chat to the Joiner and every spectator.
package chat

import (
	"encoding/base64"
	"errors"
	"fmt"

	"pokeproto/internal/wire"
)

// MaxDecodedStickerBytes is the hard cap on a sticker's decoded size; the
// receiver drops anything larger rather than raising an error, per the
// OversizedSticker disposition.
const MaxDecodedStickerBytes = 10 * 1024 * 1024

// SystemSender marks a CHAT_MESSAGE as a transport-level notification
// (e.g. end-of-chat) that bypasses the recipient's local display gate.
const SystemSender = "SYSTEM"

// ErrOversizedSticker is returned when a sticker's decoded length exceeds
// MaxDecodedStickerBytes.
var ErrOversizedSticker = errors.New("chat: sticker exceeds maximum decoded size")

// EncodeSticker base64-encodes raw sticker bytes for a CHAT_MESSAGE's
// sticker_data field. On the wire sticker_data is plain base64 of the
// raw sticker bytes and nothing else; compressing or framing the
// payload here would make it undecodable by other peers.
func EncodeSticker(raw []byte) (string, error) {
	if len(raw) > MaxDecodedStickerBytes {
		return "", ErrOversizedSticker
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSticker reverses EncodeSticker, rejecting payloads whose decoded
// size would exceed MaxDecodedStickerBytes or that fail to base64-decode.
// Per the OversizedSticker and InvalidBase64 dispositions, callers drop
// the message rather than propagate an error up as a protocol fault.
func DecodeSticker(stickerData string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(stickerData)
	if err != nil {
		return nil, fmt.Errorf("chat: invalid base64 sticker data: %w", err)
	}
	if len(raw) > MaxDecodedStickerBytes {
		return nil, ErrOversizedSticker
	}
	return raw, nil
}

// Role distinguishes the three fan-out rules a Host applies to an
// inbound CHAT_MESSAGE depending on who sent it.
type Role int

const (
	// RoleJoiner identifies the battle's non-hosting participant.
	RoleJoiner Role = iota
	// RoleSpectator identifies a read-only observer.
	RoleSpectator
	// RoleHost identifies the Host's own originated chat.
	RoleHost
)

// Recipients enumerates who a Host must forward an inbound chat message
// to, expressed as booleans so the endpoint runtime can drive its own
// addressing without this package knowing about sockets.
type Recipients struct {
	Joiner          bool
	OtherSpectators bool
}

// Route computes the fan-out recipients for a chat message the Host
// received from a participant in the given role. SYSTEM-sender messages
// still route per the sending role; the SYSTEM exemption only affects
// whether a recipient's local display gate is honored, which is the
// endpoint runtime's concern, not routing.
func Route(from Role) Recipients {
	switch from {
	case RoleJoiner:
		return Recipients{Joiner: false, OtherSpectators: true}
	case RoleSpectator:
		return Recipients{Joiner: true, OtherSpectators: true}
	case RoleHost:
		return Recipients{Joiner: true, OtherSpectators: true}
	default:
		return Recipients{}
	}
}

// IsSystemNotification reports whether msg is a transport-level
// notification that must always be delivered regardless of the
// recipient's chat-enabled flag.
func IsSystemNotification(msg wire.ChatMessage) bool {
	return msg.SenderName == SystemSender
}

// Validate checks a received CHAT_MESSAGE against the content-type
// contract, returning a non-nil error for a message the receiver must
// silently drop (oversized or un-decodable sticker, or a content type
// other than TEXT or STICKER).
func Validate(msg wire.ChatMessage) error {
	switch msg.ContentType {
	case wire.ContentTypeText:
		return nil
	case wire.ContentTypeSticker:
		_, err := DecodeSticker(msg.StickerData)
		return err
	default:
		return fmt.Errorf("chat: unknown content_type %q", msg.ContentType)
	}
}
