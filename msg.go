package interactive

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PacketType is the kind tag carried by every packet on the wire.
type PacketType string

const (
	PacketMethod PacketType = "method"
	PacketReply  PacketType = "reply"
)

// Packet is one element of a frame. Methods carry Method/Params/Discard,
// replies carry exactly one of Result or Error. A frame may contain a single
// packet or a list of packets; DecodePackets normalizes both to a list.
type Packet struct {
	Type PacketType `json:"type"`
	ID   uint32     `json:"id"`
	Seq  uint32     `json:"seq"`

	Method  string              `json:"method,omitempty"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
	Discard bool                `json:"discard,omitempty"`

	Result jsoniter.RawMessage `json:"result,omitempty"`
	Error  *ReplyError         `json:"error,omitempty"`
}

// EncodePacket produces the wire encoding of a single packet.
func EncodePacket(p *Packet) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, &CodecError{Err: fmt.Errorf("encode packet: %w", err)}
	}
	return data, nil
}

// DecodePackets parses one frame payload into its packets. The service may
// send a bare packet object or an array of them; both forms decode to a
// slice. Packets with an unrecognized type tag are returned as-is so the
// dispatcher can surface them as undefined events instead of dropping them.
func DecodePackets(data []byte) ([]Packet, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, &CodecError{Err: fmt.Errorf("empty frame")}
	}

	if trimmed[0] == '[' {
		var pkts []Packet
		if err := json.Unmarshal(trimmed, &pkts); err != nil {
			return nil, &CodecError{Err: fmt.Errorf("decode frame: %w", err)}
		}
		return pkts, nil
	}

	var pkt Packet
	if err := json.Unmarshal(trimmed, &pkt); err != nil {
		return nil, &CodecError{Err: fmt.Errorf("decode frame: %w", err)}
	}
	return []Packet{pkt}, nil
}
