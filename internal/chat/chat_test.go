package chat

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"pokeproto/internal/wire"
)

func TestEncodeDecodeStickerRoundTrip(t *testing.T) {
	raw := []byte("a pile of pixel art bytes")
	encoded, err := EncodeSticker(raw)
	if err != nil {
		t.Fatalf("EncodeSticker: %v", err)
	}
	decoded, err := DecodeSticker(encoded)
	if err != nil {
		t.Fatalf("DecodeSticker: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("expected round trip to preserve bytes, got %q", decoded)
	}
}

func TestDecodeStickerAcceptsPlainBase64FromACompliantPeer(t *testing.T) {
	// A compliant peer never compresses sticker_data: it is plain
	// base64 of the raw bytes. Encode with the standard library
	// directly here, bypassing this package's own EncodeSticker, so a
	// regression back to a non-standard wire payload would be caught.
	raw := []byte("raw sticker bytes from another implementation")
	plainBase64 := base64.StdEncoding.EncodeToString(raw)
	decoded, err := DecodeSticker(plainBase64)
	if err != nil {
		t.Fatalf("DecodeSticker: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("expected plain base64 sticker data to decode to the raw bytes, got %q", decoded)
	}
}

func TestEncodeStickerRejectsOversizedPayload(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, MaxDecodedStickerBytes+1)
	if _, err := EncodeSticker(raw); err != ErrOversizedSticker {
		t.Fatalf("expected ErrOversizedSticker, got %v", err)
	}
}

func TestDecodeStickerRejectsInvalidBase64(t *testing.T) {
	if _, err := DecodeSticker("not valid base64!!"); err == nil {
		t.Fatal("expected an error for invalid base64 sticker data")
	}
}

func TestRouteFromJoinerExcludesJoiner(t *testing.T) {
	r := Route(RoleJoiner)
	if r.Joiner {
		t.Fatal("expected the Joiner to not receive its own chat message back")
	}
	if !r.OtherSpectators {
		t.Fatal("expected spectators to receive a Joiner chat message")
	}
}

func TestRouteFromSpectatorReachesJoinerAndOtherSpectators(t *testing.T) {
	r := Route(RoleSpectator)
	if !r.Joiner || !r.OtherSpectators {
		t.Fatalf("expected spectator chat to reach the joiner and other spectators, got %+v", r)
	}
}

func TestIsSystemNotification(t *testing.T) {
	sys := wire.ChatMessage{SenderName: SystemSender, ContentType: wire.ContentTypeText, MessageText: "battle ended"}
	if !IsSystemNotification(sys) {
		t.Fatal("expected a SYSTEM-sender message to be recognized as a notification")
	}
	regular := wire.ChatMessage{SenderName: "Ash", ContentType: wire.ContentTypeText, MessageText: "gg"}
	if IsSystemNotification(regular) {
		t.Fatal("expected a regular sender to not be treated as a notification")
	}
}

func TestValidateAcceptsText(t *testing.T) {
	msg := wire.ChatMessage{SenderName: "Ash", ContentType: wire.ContentTypeText, MessageText: "hello"}
	if err := Validate(msg); err != nil {
		t.Fatalf("expected text message to validate, got %v", err)
	}
}

func TestValidateRejectsMalformedStickerFrame(t *testing.T) {
	msg := wire.ChatMessage{SenderName: "Ash", ContentType: wire.ContentTypeSticker, StickerData: strings.Repeat("!", 64)}
	if err := Validate(msg); err == nil {
		t.Fatal("expected a non-base64 payload to fail validation")
	}
}
