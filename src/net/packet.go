package net

import "bytes"

// Signature is the first byte of every datagram. It names the packet variant.
type Signature uint8

const (
	// SigRequest asks every node for its current readings.
	SigRequest Signature = iota
	// SigResponse carries one node's readings.
	SigResponse
	// SigInfoMessage carries the master's averages.
	SigInfoMessage
	// SigVote carries an election candidate's random value.
	SigVote
	// SigResetMaster announces that a master stepped down.
	SigResetMaster

	sigCount
)

// String returns the string representation of a Signature
func (s Signature) String() string {
	switch s {
	case SigRequest:
		return "Request"
	case SigResponse:
		return "Response"
	case SigInfoMessage:
		return "InfoMessage"
	case SigVote:
		return "Vote"
	case SigResetMaster:
		return "ResetMaster"
	default:
		return "Unknown"
	}
}

// Wire sizes. Every variant is exactly its packed layout, signature included.
const (
	RequestSize     = 1
	ResponseSize    = 3
	InfoMessageSize = 11
	VoteSize        = 5
	ResetMasterSize = 1

	// InfoTextSize is the length of the NUL-terminated text in an
	// InfoMessage.
	InfoTextSize = 4

	MinSize = 1
	MaxSize = InfoMessageSize
)

var expectedSize = [sigCount]int{
	SigRequest:     RequestSize,
	SigResponse:    ResponseSize,
	SigInfoMessage: InfoMessageSize,
	SigVote:        VoteSize,
	SigResetMaster: ResetMasterSize,
}

// ExpectedSize returns the wire size of the variant named by sig, and false if
// sig is not a known variant.
func ExpectedSize(sig Signature) (int, bool) {
	if sig >= sigCount {
		return 0, false
	}
	return expectedSize[sig], true
}

// Packet is implemented by every wire variant.
type Packet interface {
	Signature() Signature
}

// Request is sent periodically by the master.
type Request struct{}

// Response answers a Request with the sender's readings.
type Response struct {
	Temperature  int8
	Illumination uint8
}

// InfoMessage is broadcast by the master whenever an average changes.
type InfoMessage struct {
	Text           [InfoTextSize]byte
	AvgTemperature int8
	Timestamp      uint32
	Brightness     uint8
}

// Vote is broadcast by an election candidate.
type Vote struct {
	Value uint32
}

// ResetMaster is broadcast by a master giving up its role.
type ResetMaster struct{}

func (Request) Signature() Signature     { return SigRequest }
func (Response) Signature() Signature    { return SigResponse }
func (InfoMessage) Signature() Signature { return SigInfoMessage }
func (Vote) Signature() Signature        { return SigVote }
func (ResetMaster) Signature() Signature { return SigResetMaster }

// TextString returns Text up to its first NUL byte.
func (m InfoMessage) TextString() string {
	if i := bytes.IndexByte(m.Text[:], 0); i >= 0 {
		return string(m.Text[:i])
	}
	return string(m.Text[:])
}

// SetText stores s in Text, truncated so that a terminating NUL always fits.
func (m *InfoMessage) SetText(s string) {
	m.Text = [InfoTextSize]byte{}
	copy(m.Text[:InfoTextSize-1], s)
}
