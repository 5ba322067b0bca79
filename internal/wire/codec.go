package wire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseError is returned for malformed datagrams: missing message_type,
// unknown tag, a missing required field, or a malformed numeric/JSON value.
// Per the error handling contract, callers drop the datagram silently and
// do not ACK it.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "wire: parse error: " + e.Reason }

func newParseError(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// Serialize renders a message to its wire frame: newline-separated
// "key: value" lines with a trailing newline. Serialize is infallible for
// well-formed messages produced by this package's constructors.
func Serialize(msg Message) []byte {
	//0.- Sequenced variants travel through the reliability layer as
	//    pointers (SetSeq requires an addressable receiver); normalize to
	//    the value type so the switch below has a single set of cases.
	switch p := msg.(type) {
	case *HandshakeRequest:
		msg = *p
	case *HandshakeResponse:
		msg = *p
	case *SpectatorRequest:
		msg = *p
	case *BattleSetup:
		msg = *p
	case *AttackAnnounce:
		msg = *p
	case *DefenseAnnounce:
		msg = *p
	case *CalculationReport:
		msg = *p
	case *CalculationConfirm:
		msg = *p
	case *ResolutionRequest:
		msg = *p
	case *GameOver:
		msg = *p
	case *RematchRequest:
		msg = *p
	case *ChatMessage:
		msg = *p
	case *BoostActivation:
		msg = *p
	case *Ack:
		msg = *p
	}

	var b strings.Builder
	fmt.Fprintf(&b, "message_type: %s\n", msg.MessageType())

	switch m := msg.(type) {
	case HandshakeRequest:
		writeSeq(&b, m.SequenceNumber)
	case HandshakeResponse:
		fmt.Fprintf(&b, "seed: %d\n", m.Seed)
		writeSeq(&b, m.SequenceNumber)
	case SpectatorRequest:
		writeSeq(&b, m.SequenceNumber)
	case BattleSetup:
		fmt.Fprintf(&b, "communication_mode: %s\n", m.CommunicationMode)
		fmt.Fprintf(&b, "pokemon_name: %s\n", m.PokemonName)
		boosts, _ := json.Marshal(m.StatBoosts)
		fmt.Fprintf(&b, "stat_boosts: %s\n", boosts)
		pokemon := m.Pokemon
		if pokemon == "" {
			pokemon = "{}"
		}
		fmt.Fprintf(&b, "pokemon: %s\n", pokemon)
		writeSeq(&b, m.SequenceNumber)
	case AttackAnnounce:
		fmt.Fprintf(&b, "move_name: %s\n", m.MoveName)
		writeSeq(&b, m.SequenceNumber)
	case DefenseAnnounce:
		writeSeq(&b, m.SequenceNumber)
	case CalculationReport:
		fmt.Fprintf(&b, "attacker: %s\n", m.Attacker)
		fmt.Fprintf(&b, "move_used: %s\n", m.MoveUsed)
		fmt.Fprintf(&b, "remaining_health: %d\n", m.RemainingHealth)
		fmt.Fprintf(&b, "damage_dealt: %d\n", m.DamageDealt)
		fmt.Fprintf(&b, "defender_hp_remaining: %d\n", m.DefenderHPRemaining)
		fmt.Fprintf(&b, "status_message: %s\n", m.StatusMessage)
		writeSeq(&b, m.SequenceNumber)
	case CalculationConfirm:
		writeSeq(&b, m.SequenceNumber)
	case ResolutionRequest:
		fmt.Fprintf(&b, "attacker: %s\n", m.Attacker)
		fmt.Fprintf(&b, "move_used: %s\n", m.MoveUsed)
		fmt.Fprintf(&b, "damage_dealt: %d\n", m.DamageDealt)
		fmt.Fprintf(&b, "defender_hp_remaining: %d\n", m.DefenderHPRemaining)
		writeSeq(&b, m.SequenceNumber)
	case GameOver:
		fmt.Fprintf(&b, "winner: %s\n", m.Winner)
		fmt.Fprintf(&b, "loser: %s\n", m.Loser)
		writeSeq(&b, m.SequenceNumber)
	case RematchRequest:
		fmt.Fprintf(&b, "wants_rematch: %t\n", m.WantsRematch)
		writeSeq(&b, m.SequenceNumber)
	case ChatMessage:
		fmt.Fprintf(&b, "sender_name: %s\n", m.SenderName)
		fmt.Fprintf(&b, "content_type: %s\n", m.ContentType)
		if m.ContentType == ContentTypeSticker {
			fmt.Fprintf(&b, "sticker_data: %s\n", m.StickerData)
		} else {
			fmt.Fprintf(&b, "message_text: %s\n", m.MessageText)
		}
		writeSeq(&b, m.SequenceNumber)
	case BoostActivation:
		fmt.Fprintf(&b, "boost_type: %s\n", m.BoostType)
		writeSeq(&b, m.SequenceNumber)
	case Ack:
		fmt.Fprintf(&b, "ack_number: %d\n", m.AckNumber)
	}

	return []byte(b.String())
}

func writeSeq(b *strings.Builder, seq uint32) {
	fmt.Fprintf(b, "sequence_number: %d\n", seq)
}

// Parse decodes a wire frame into its concrete Message variant.
//
// The parser splits each line on the first ':' only, so values may
// contain colons of their own (status messages, embedded JSON). Trailing
// whitespace around values is trimmed; surrounding blank lines are
// ignored.
func Parse(data []byte) (Message, error) {
	fields := make(map[string]string)
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			return nil, newParseError("malformed line %q", line)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		fields[key] = value
	}

	tag, ok := fields["message_type"]
	if !ok {
		return nil, newParseError("missing message_type")
	}

	switch Tag(tag) {
	case TagHandshakeRequest:
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return HandshakeRequest{SequenceNumber: seq}, nil

	case TagHandshakeResponse:
		seed, err := requireUint32(fields, "seed")
		if err != nil {
			return nil, err
		}
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return HandshakeResponse{Seed: seed, SequenceNumber: seq}, nil

	case TagSpectatorRequest:
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return SpectatorRequest{SequenceNumber: seq}, nil

	case TagBattleSetup:
		mode, err := requireField(fields, "communication_mode")
		if err != nil {
			return nil, err
		}
		name, err := requireField(fields, "pokemon_name")
		if err != nil {
			return nil, err
		}
		boostsRaw, err := requireField(fields, "stat_boosts")
		if err != nil {
			return nil, err
		}
		var boosts StatBoosts
		if err := json.Unmarshal([]byte(boostsRaw), &boosts); err != nil {
			return nil, newParseError("invalid stat_boosts JSON: %v", err)
		}
		pokemon := fields["pokemon"]
		if pokemon == "" {
			pokemon = "{}"
		}
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return BattleSetup{
			CommunicationMode: mode,
			PokemonName:       name,
			StatBoosts:        boosts,
			Pokemon:           pokemon,
			SequenceNumber:    seq,
		}, nil

	case TagAttackAnnounce:
		move, err := requireField(fields, "move_name")
		if err != nil {
			return nil, err
		}
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return AttackAnnounce{MoveName: move, SequenceNumber: seq}, nil

	case TagDefenseAnnounce:
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return DefenseAnnounce{SequenceNumber: seq}, nil

	case TagCalculationReport:
		attacker, err := requireField(fields, "attacker")
		if err != nil {
			return nil, err
		}
		moveUsed, err := requireField(fields, "move_used")
		if err != nil {
			return nil, err
		}
		remaining, err := requireInt(fields, "remaining_health")
		if err != nil {
			return nil, err
		}
		damage, err := requireInt(fields, "damage_dealt")
		if err != nil {
			return nil, err
		}
		defenderHP, err := requireInt(fields, "defender_hp_remaining")
		if err != nil {
			return nil, err
		}
		status := fields["status_message"]
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return CalculationReport{
			Attacker:            attacker,
			MoveUsed:            moveUsed,
			RemainingHealth:     remaining,
			DamageDealt:         damage,
			DefenderHPRemaining: defenderHP,
			StatusMessage:       status,
			SequenceNumber:      seq,
		}, nil

	case TagCalculationConfirm:
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return CalculationConfirm{SequenceNumber: seq}, nil

	case TagResolutionRequest:
		attacker, err := requireField(fields, "attacker")
		if err != nil {
			return nil, err
		}
		moveUsed, err := requireField(fields, "move_used")
		if err != nil {
			return nil, err
		}
		damage, err := requireInt(fields, "damage_dealt")
		if err != nil {
			return nil, err
		}
		defenderHP, err := requireInt(fields, "defender_hp_remaining")
		if err != nil {
			return nil, err
		}
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return ResolutionRequest{
			Attacker:            attacker,
			MoveUsed:            moveUsed,
			DamageDealt:         damage,
			DefenderHPRemaining: defenderHP,
			SequenceNumber:      seq,
		}, nil

	case TagGameOver:
		winner, err := requireField(fields, "winner")
		if err != nil {
			return nil, err
		}
		loser, err := requireField(fields, "loser")
		if err != nil {
			return nil, err
		}
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return GameOver{Winner: winner, Loser: loser, SequenceNumber: seq}, nil

	case TagRematchRequest:
		raw, err := requireField(fields, "wants_rematch")
		if err != nil {
			return nil, err
		}
		wants, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, newParseError("invalid wants_rematch value %q", raw)
		}
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return RematchRequest{WantsRematch: wants, SequenceNumber: seq}, nil

	case TagChatMessage:
		sender, err := requireField(fields, "sender_name")
		if err != nil {
			return nil, err
		}
		contentType, err := requireField(fields, "content_type")
		if err != nil {
			return nil, err
		}
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		msg := ChatMessage{SenderName: sender, ContentType: ContentType(contentType), SequenceNumber: seq}
		switch msg.ContentType {
		case ContentTypeText:
			text, err := requireField(fields, "message_text")
			if err != nil {
				return nil, err
			}
			msg.MessageText = text
		case ContentTypeSticker:
			data, err := requireField(fields, "sticker_data")
			if err != nil {
				return nil, err
			}
			msg.StickerData = data
		default:
			return nil, newParseError("unknown content_type %q", contentType)
		}
		return msg, nil

	case TagBoostActivation:
		boostType, err := requireField(fields, "boost_type")
		if err != nil {
			return nil, err
		}
		seq, err := requireSeq(fields)
		if err != nil {
			return nil, err
		}
		return BoostActivation{BoostType: BoostType(boostType), SequenceNumber: seq}, nil

	case TagAck:
		ack, err := requireUint32(fields, "ack_number")
		if err != nil {
			return nil, err
		}
		return Ack{AckNumber: ack}, nil

	default:
		return nil, newParseError("unknown message_type %q", tag)
	}
}

func requireField(fields map[string]string, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", newParseError("missing required field %q", key)
	}
	return v, nil
}

func requireSeq(fields map[string]string) (uint32, error) {
	return requireUint32(fields, "sequence_number")
}

func requireUint32(fields map[string]string, key string) (uint32, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, newParseError("missing required field %q", key)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, newParseError("field %q is not a valid unsigned integer: %q", key, raw)
	}
	return uint32(v), nil
}

func requireInt(fields map[string]string, key string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, newParseError("missing required field %q", key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, newParseError("field %q is not a valid integer: %q", key, raw)
	}
	return v, nil
}

// knownTags lists every supported message_type, used for validation in tests.
func knownTags() []Tag {
	tags := []Tag{
		TagHandshakeRequest, TagHandshakeResponse, TagSpectatorRequest, TagBattleSetup,
		TagAttackAnnounce, TagDefenseAnnounce, TagCalculationReport, TagCalculationConfirm,
		TagResolutionRequest, TagGameOver, TagRematchRequest, TagChatMessage,
		TagBoostActivation, TagAck,
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
