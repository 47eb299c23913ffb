package stats

import (
	"encoding/binary"
	"math"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

// StatEntry is one name/value pair of a StatsProto message, hand-encoded to
// the standard protobuf wire format (field 1: string name; field 2: fixed32
// float value) instead of generated from a .proto file -- this module has no
// protoc pipeline, but gogo/protobuf's proto.Marshal/Unmarshal dispatch
// straight to a type's own Marshal/Unmarshal methods when present (the same
// "newMarshaler" fast path protoc-generated code uses), so a hand-written
// message genuinely exercises the real library instead of merely importing it.
type StatEntry struct {
	Name  string
	Value float32
}

func (*StatEntry) Reset()         {}
func (*StatEntry) String() string { return "" }
func (*StatEntry) ProtoMessage()  {}

// Marshal encodes e as a standalone protobuf message.
func (e *StatEntry) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendTag(buf, 1, wireBytes)
	buf = appendVarint(buf, uint64(len(e.Name)))
	buf = append(buf, e.Name...)
	buf = appendTag(buf, 2, wireFixed32)
	buf = appendFixed32(buf, math.Float32bits(e.Value))
	return buf, nil
}

func (e *StatEntry) Unmarshal(data []byte) error {
	for len(data) > 0 {
		tag, wire, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		switch {
		case tag == 1 && wire == wireBytes:
			s, n, err := readBytes(data)
			if err != nil {
				return err
			}
			e.Name = string(s)
			data = data[n:]
		case tag == 2 && wire == wireFixed32:
			v, n, err := readFixed32(data)
			if err != nil {
				return err
			}
			e.Value = math.Float32frombits(v)
			data = data[n:]
		default:
			n, err := skipField(data, wire)
			if err != nil {
				return err
			}
			data = data[n:]
		}
	}
	return nil
}

// StatsProto is the wire message StatEntry's are bundled into: field 1,
// repeated, embedded (length-delimited) StatEntry.
type StatsProto struct {
	Entries []*StatEntry
}

func (*StatsProto) Reset()         {}
func (*StatsProto) String() string { return "" }
func (*StatsProto) ProtoMessage()  {}

func (s *StatsProto) Marshal() ([]byte, error) {
	var buf []byte
	for _, e := range s.Entries {
		sub, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		buf = appendTag(buf, 1, wireBytes)
		buf = appendVarint(buf, uint64(len(sub)))
		buf = append(buf, sub...)
	}
	return buf, nil
}

func (s *StatsProto) Unmarshal(data []byte) error {
	s.Entries = nil
	for len(data) > 0 {
		tag, wire, n, err := readTag(data)
		if err != nil {
			return err
		}
		data = data[n:]
		if tag != 1 || wire != wireBytes {
			n, err := skipField(data, wire)
			if err != nil {
				return err
			}
			data = data[n:]
			continue
		}
		sub, n, err := readBytes(data)
		if err != nil {
			return err
		}
		data = data[n:]
		e := &StatEntry{}
		if err := e.Unmarshal(sub); err != nil {
			return err
		}
		s.Entries = append(s.Entries, e)
	}
	return nil
}

// ToProto converts a flat stats map (the shape Snapshot/Stats return) to a
// StatsProto, in unspecified order.
func ToProto(m map[string]float32) *StatsProto {
	out := &StatsProto{Entries: make([]*StatEntry, 0, len(m))}
	for k, v := range m {
		out.Entries = append(out.Entries, &StatEntry{Name: k, Value: v})
	}
	return out
}

// FromProto converts a StatsProto back to a flat stats map.
func FromProto(p *StatsProto) map[string]float32 {
	out := make(map[string]float32, len(p.Entries))
	for _, e := range p.Entries {
		out[e.Name] = e.Value
	}
	return out
}

// MarshalProto encodes m through the real gogo/protobuf proto.Marshal entry
// point (which, finding StatsProto already implements Marshaler, calls its
// Marshal method directly rather than using reflection).
func MarshalProto(m map[string]float32) ([]byte, error) {
	buf, err := proto.Marshal(ToProto(m))
	return buf, errors.Wrap(err, "stats: marshal proto")
}

// UnmarshalProto decodes data (as produced by MarshalProto) back to a flat
// stats map, via proto.Unmarshal.
func UnmarshalProto(data []byte) (map[string]float32, error) {
	p := &StatsProto{}
	if err := proto.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(err, "stats: unmarshal proto")
	}
	return FromProto(p), nil
}

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

func appendTag(buf []byte, field int, wire uint64) []byte {
	return appendVarint(buf, uint64(field)<<3|wire)
}

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendFixed32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readVarint(data []byte) (uint64, int, error) {
	var v uint64
	for i, b := range data {
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b < 0x80 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errors.New("stats: truncated varint")
}

func readTag(data []byte) (field int, wire uint64, n int, err error) {
	v, n, err := readVarint(data)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(v >> 3), v & 7, n, nil
}

func readBytes(data []byte) ([]byte, int, error) {
	l, n, err := readVarint(data)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(data)-n) < l {
		return nil, 0, errors.New("stats: truncated length-delimited field")
	}
	return data[n : n+int(l)], n + int(l), nil
}

func readFixed32(data []byte) (uint32, int, error) {
	if len(data) < 4 {
		return 0, 0, errors.New("stats: truncated fixed32")
	}
	return binary.LittleEndian.Uint32(data[:4]), 4, nil
}

// skipField advances past one field's value without decoding it, for
// forward-compatibility with unknown field numbers.
func skipField(data []byte, wire uint64) (int, error) {
	switch wire {
	case wireVarint:
		_, n, err := readVarint(data)
		return n, err
	case wireFixed64:
		if len(data) < 8 {
			return 0, errors.New("stats: truncated fixed64")
		}
		return 8, nil
	case wireBytes:
		_, n, err := readBytes(data)
		return n, err
	case wireFixed32:
		_, n, err := readFixed32(data)
		return n, err
	default:
		return 0, errors.Errorf("stats: unknown wire type %d", wire)
	}
}
