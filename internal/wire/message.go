// Package wire implements the line-oriented text codec for PokéProtocol
// datagrams: one message per datagram, UTF-8 key: value lines terminated
// by a trailing newline, first line always message_type.
//
// The message zoo is a closed set of fourteen variants. Rather than a
// single loosely-typed struct, each variant gets its own Go type
// implementing Message; Parse returns the concrete variant behind the
// interface and Dispatch is an exhaustive type switch at the call site.
package wire

// Tag identifies a message variant on the wire.
type Tag string

const (
	TagHandshakeRequest   Tag = "HANDSHAKE_REQUEST"
	TagHandshakeResponse  Tag = "HANDSHAKE_RESPONSE"
	TagSpectatorRequest   Tag = "SPECTATOR_REQUEST"
	TagBattleSetup        Tag = "BATTLE_SETUP"
	TagAttackAnnounce     Tag = "ATTACK_ANNOUNCE"
	TagDefenseAnnounce    Tag = "DEFENSE_ANNOUNCE"
	TagCalculationReport  Tag = "CALCULATION_REPORT"
	TagCalculationConfirm Tag = "CALCULATION_CONFIRM"
	TagResolutionRequest  Tag = "RESOLUTION_REQUEST"
	TagGameOver           Tag = "GAME_OVER"
	TagRematchRequest     Tag = "REMATCH_REQUEST"
	TagChatMessage        Tag = "CHAT_MESSAGE"
	TagBoostActivation    Tag = "BOOST_ACTIVATION"
	TagAck                Tag = "ACK"
)

// Message is implemented by every wire variant.
type Message interface {
	MessageType() Tag
}

// Numbered is implemented by every variant except ACK (which carries an
// ack_number instead of its own sequence_number), in both value and
// pointer form; Parse returns value types, so the inbound path asserts
// this interface to read the received sequence number.
type Numbered interface {
	Message
	Seq() uint32
}

// Sequenced adds the pointer-only SetSeq used on the outbound path,
// where the reliability layer stamps a freshly allocated sequence
// number into the message before serialization.
type Sequenced interface {
	Numbered
	SetSeq(uint32)
}

// StatBoosts is the embedded JSON payload describing remaining boost charges.
type StatBoosts struct {
	SpecialAttackUses  int `json:"special_attack_uses"`
	SpecialDefenseUses int `json:"special_defense_uses"`
}

// ContentType enumerates the two chat payload kinds.
type ContentType string

const (
	ContentTypeText    ContentType = "TEXT"
	ContentTypeSticker ContentType = "STICKER"
)

type HandshakeRequest struct {
	SequenceNumber uint32
}

func (m HandshakeRequest) MessageType() Tag { return TagHandshakeRequest }
func (m HandshakeRequest) Seq() uint32      { return m.SequenceNumber }
func (m *HandshakeRequest) SetSeq(v uint32) { m.SequenceNumber = v }

type HandshakeResponse struct {
	Seed           uint32
	SequenceNumber uint32
}

func (m HandshakeResponse) MessageType() Tag { return TagHandshakeResponse }
func (m HandshakeResponse) Seq() uint32      { return m.SequenceNumber }
func (m *HandshakeResponse) SetSeq(v uint32) { m.SequenceNumber = v }

type SpectatorRequest struct {
	SequenceNumber uint32
}

func (m SpectatorRequest) MessageType() Tag { return TagSpectatorRequest }
func (m SpectatorRequest) Seq() uint32      { return m.SequenceNumber }
func (m *SpectatorRequest) SetSeq(v uint32) { m.SequenceNumber = v }

type BattleSetup struct {
	CommunicationMode string
	PokemonName       string
	StatBoosts        StatBoosts
	Pokemon           string // raw single-line JSON creature snapshot, or "{}"
	SequenceNumber    uint32
}

func (m BattleSetup) MessageType() Tag { return TagBattleSetup }
func (m BattleSetup) Seq() uint32      { return m.SequenceNumber }
func (m *BattleSetup) SetSeq(v uint32) { m.SequenceNumber = v }

type AttackAnnounce struct {
	MoveName       string
	SequenceNumber uint32
}

func (m AttackAnnounce) MessageType() Tag { return TagAttackAnnounce }
func (m AttackAnnounce) Seq() uint32      { return m.SequenceNumber }
func (m *AttackAnnounce) SetSeq(v uint32) { m.SequenceNumber = v }

type DefenseAnnounce struct {
	SequenceNumber uint32
}

func (m DefenseAnnounce) MessageType() Tag { return TagDefenseAnnounce }
func (m DefenseAnnounce) Seq() uint32      { return m.SequenceNumber }
func (m *DefenseAnnounce) SetSeq(v uint32) { m.SequenceNumber = v }

type CalculationReport struct {
	Attacker            string
	MoveUsed            string
	RemainingHealth     int
	DamageDealt         int
	DefenderHPRemaining int
	StatusMessage       string
	SequenceNumber      uint32
}

func (m CalculationReport) MessageType() Tag { return TagCalculationReport }
func (m CalculationReport) Seq() uint32      { return m.SequenceNumber }
func (m *CalculationReport) SetSeq(v uint32) { m.SequenceNumber = v }

type CalculationConfirm struct {
	SequenceNumber uint32
}

func (m CalculationConfirm) MessageType() Tag { return TagCalculationConfirm }
func (m CalculationConfirm) Seq() uint32      { return m.SequenceNumber }
func (m *CalculationConfirm) SetSeq(v uint32) { m.SequenceNumber = v }

type ResolutionRequest struct {
	Attacker            string
	MoveUsed            string
	DamageDealt         int
	DefenderHPRemaining int
	SequenceNumber      uint32
}

func (m ResolutionRequest) MessageType() Tag { return TagResolutionRequest }
func (m ResolutionRequest) Seq() uint32      { return m.SequenceNumber }
func (m *ResolutionRequest) SetSeq(v uint32) { m.SequenceNumber = v }

type GameOver struct {
	Winner         string
	Loser          string
	SequenceNumber uint32
}

func (m GameOver) MessageType() Tag { return TagGameOver }
func (m GameOver) Seq() uint32      { return m.SequenceNumber }
func (m *GameOver) SetSeq(v uint32) { m.SequenceNumber = v }

type RematchRequest struct {
	WantsRematch   bool
	SequenceNumber uint32
}

func (m RematchRequest) MessageType() Tag { return TagRematchRequest }
func (m RematchRequest) Seq() uint32      { return m.SequenceNumber }
func (m *RematchRequest) SetSeq(v uint32) { m.SequenceNumber = v }

type ChatMessage struct {
	SenderName     string
	ContentType    ContentType
	MessageText    string
	StickerData    string // base64
	SequenceNumber uint32
}

func (m ChatMessage) MessageType() Tag { return TagChatMessage }
func (m ChatMessage) Seq() uint32      { return m.SequenceNumber }
func (m *ChatMessage) SetSeq(v uint32) { m.SequenceNumber = v }

// BoostType enumerates the reserved BOOST_ACTIVATION payloads; the state
// machine accepts the opcode but does not yet wire any consumer for it.
type BoostType string

const (
	BoostTypeSpecialAttack  BoostType = "SPECIAL_ATTACK"
	BoostTypeSpecialDefense BoostType = "SPECIAL_DEFENSE"
)

type BoostActivation struct {
	BoostType      BoostType
	SequenceNumber uint32
}

func (m BoostActivation) MessageType() Tag { return TagBoostActivation }
func (m BoostActivation) Seq() uint32      { return m.SequenceNumber }
func (m *BoostActivation) SetSeq(v uint32) { m.SequenceNumber = v }

type Ack struct {
	AckNumber uint32
}

func (m Ack) MessageType() Tag { return TagAck }

// Parse hands back value types and the reliability layer holds pointer
// types, so every variant must satisfy Numbered by value and Sequenced
// by pointer.
var (
	_ Numbered  = HandshakeRequest{}
	_ Numbered  = HandshakeResponse{}
	_ Numbered  = SpectatorRequest{}
	_ Numbered  = BattleSetup{}
	_ Numbered  = AttackAnnounce{}
	_ Numbered  = DefenseAnnounce{}
	_ Numbered  = CalculationReport{}
	_ Numbered  = CalculationConfirm{}
	_ Numbered  = ResolutionRequest{}
	_ Numbered  = GameOver{}
	_ Numbered  = RematchRequest{}
	_ Numbered  = ChatMessage{}
	_ Numbered  = BoostActivation{}
	_ Sequenced = (*HandshakeRequest)(nil)
	_ Sequenced = (*HandshakeResponse)(nil)
	_ Sequenced = (*SpectatorRequest)(nil)
	_ Sequenced = (*BattleSetup)(nil)
	_ Sequenced = (*AttackAnnounce)(nil)
	_ Sequenced = (*DefenseAnnounce)(nil)
	_ Sequenced = (*CalculationReport)(nil)
	_ Sequenced = (*CalculationConfirm)(nil)
	_ Sequenced = (*ResolutionRequest)(nil)
	_ Sequenced = (*GameOver)(nil)
	_ Sequenced = (*RematchRequest)(nil)
	_ Sequenced = (*ChatMessage)(nil)
	_ Sequenced = (*BoostActivation)(nil)
	_ Message   = Ack{}
)
