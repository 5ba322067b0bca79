package endpoint

import (
	"net"

	"pokeproto/internal/chat"
	"pokeproto/internal/logging"
	"pokeproto/internal/wire"
)

func (e *Endpoint) sendChat(sender, text string) error {
	msg := &wire.ChatMessage{SenderName: sender, ContentType: wire.ContentTypeText, MessageText: text}
	return e.dispatchChatOutbound(msg)
}

func (e *Endpoint) sendSticker(sender string, raw []byte) error {
	// cfg.MaxStickerBytes may bound stickers tighter than the protocol's
	// hard cap; the transport-level limit in chat still applies after it.
	if e.cfg.MaxStickerBytes > 0 && int64(len(raw)) > e.cfg.MaxStickerBytes {
		return chat.ErrOversizedSticker
	}
	encoded, err := chat.EncodeSticker(raw)
	if err != nil {
		return err
	}
	msg := &wire.ChatMessage{SenderName: sender, ContentType: wire.ContentTypeSticker, StickerData: encoded}
	return e.dispatchChatOutbound(msg)
}

// dispatchChatOutbound sends a locally originated chat message to the
// primary peer and, for the Host role, directly to every spectator:
// the Host's own chat never transits a reflection hop.
func (e *Endpoint) dispatchChatOutbound(msg *wire.ChatMessage) error {
	if e.peerAddr != nil {
		if err := e.sendTracked(e.peerAddr, msg); err != nil {
			return err
		}
	}
	if e.role == RoleHost {
		e.mirrorToSpectators(msg)
	}
	return nil
}

// handleChatMessage applies the receiver side of the chat subchannel:
// drop oversized or malformed payloads, surface the message to the
// local observer, and (Host role only) reflect it per the sender's
// fan-out rule.
func (e *Endpoint) handleChatMessage(addr net.Addr, m wire.ChatMessage) {
	if err := chat.Validate(m); err != nil {
		e.log.Debug("endpoint: dropping invalid chat message", logging.Error(err))
		return
	}
	e.emitChatEvent(m)

	if e.role != RoleHost {
		return
	}

	from := chat.RoleSpectator
	if e.peerAddr != nil && addr.String() == e.peerAddr.String() {
		from = chat.RoleJoiner
	}
	recipients := chat.Route(from)
	mirror := &wire.ChatMessage{SenderName: m.SenderName, ContentType: m.ContentType, MessageText: m.MessageText, StickerData: m.StickerData}

	if recipients.Joiner && from == chat.RoleSpectator && e.peerAddr != nil {
		e.sendUntracked(e.peerAddr, mirror)
	}
	if recipients.OtherSpectators && e.rosterRef != nil {
		e.rosterRef.Broadcast(func(spectator net.Addr) error {
			if from == chat.RoleSpectator && spectator.String() == addr.String() {
				return nil
			}
			e.sendUntracked(spectator, mirror)
			return nil
		})
	}
}

func (e *Endpoint) emitChatEvent(m wire.ChatMessage) {
	switch m.ContentType {
	case wire.ContentTypeSticker:
		raw, err := chat.DecodeSticker(m.StickerData)
		if err != nil {
			return
		}
		if e.cfg.MaxStickerBytes > 0 && int64(len(raw)) > e.cfg.MaxStickerBytes {
			return
		}
		e.events.publish(Event{Kind: EventSticker, Sender: m.SenderName, Sticker: raw})
	default:
		e.events.publish(Event{Kind: EventChatMessage, Sender: m.SenderName, Text: m.MessageText})
	}
}
