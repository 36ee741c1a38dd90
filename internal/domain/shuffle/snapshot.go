package shuffle

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Snapshot is the durable mirror of an iterator.
type Snapshot struct {
	StartIndex  int
	TotalLength int
	ChunkSize   int
	Order       []int
	Pointer     int
	Completed   bool
}

// Snapshot field numbers in the protobuf wire encoding.
const (
	fieldStartIndex  protowire.Number = 1
	fieldTotalLength protowire.Number = 2
	fieldChunkSize   protowire.Number = 3
	fieldOrder       protowire.Number = 4 // packed varints
	fieldPointer     protowire.Number = 5 // zigzag, may be -1
	fieldCompleted   protowire.Number = 6
)

// Validate checks the snapshot against the iterator invariants.
func (s Snapshot) Validate() error {
	if s.TotalLength < 1 {
		return errors.Newf("total length must be at least 1, got %d", s.TotalLength)
	}
	if s.StartIndex < 0 || s.StartIndex >= s.TotalLength {
		return errors.Newf("start index %d out of range [0,%d)", s.StartIndex, s.TotalLength)
	}
	if s.ChunkSize < 1 || s.ChunkSize > s.TotalLength {
		return errors.Newf("chunk size %d out of range [1,%d]", s.ChunkSize, s.TotalLength)
	}
	if err := validateOrder(s.Order, s.StartIndex, s.TotalLength); err != nil {
		return err
	}
	if s.Pointer < -1 || s.Pointer >= len(s.Order) {
		return errors.Newf("pointer %d out of range [-1,%d)", s.Pointer, len(s.Order))
	}
	if s.Completed && (len(s.Order) != s.TotalLength || s.Pointer != len(s.Order)-1) {
		return errors.New("completed pass must have every index drawn and the pointer on the last")
	}
	return nil
}

// MarshalSnapshot encodes s in protobuf wire format.
func MarshalSnapshot(s Snapshot) []byte {
	var b []byte
	b = appendVarintField(b, fieldStartIndex, uint64(s.StartIndex))
	b = appendVarintField(b, fieldTotalLength, uint64(s.TotalLength))
	b = appendVarintField(b, fieldChunkSize, uint64(s.ChunkSize))

	packed := make([]byte, 0, len(s.Order)*2)
	for _, idx := range s.Order {
		packed = protowire.AppendVarint(packed, uint64(idx))
	}
	b = protowire.AppendTag(b, fieldOrder, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)

	b = appendVarintField(b, fieldPointer, protowire.EncodeZigZag(int64(s.Pointer)))
	b = appendVarintField(b, fieldCompleted, protowire.EncodeBool(s.Completed))
	return b
}

// UnmarshalSnapshot decodes a snapshot written by MarshalSnapshot.
// Unknown fields are skipped. The result is not validated.
func UnmarshalSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Snapshot{}, errors.Wrap(protowire.ParseError(n), "failed to read field tag")
		}
		b = b[n:]

		switch {
		case num == fieldOrder && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Snapshot{}, errors.Wrap(protowire.ParseError(n), "failed to read order")
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return Snapshot{}, errors.Wrap(protowire.ParseError(m), "failed to read order entry")
				}
				packed = packed[m:]
				s.Order = append(s.Order, int(v))
			}

		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Snapshot{}, errors.Wrapf(protowire.ParseError(n), "failed to read field %d", num)
			}
			b = b[n:]
			switch num {
			case fieldStartIndex:
				s.StartIndex = int(v)
			case fieldTotalLength:
				s.TotalLength = int(v)
			case fieldChunkSize:
				s.ChunkSize = int(v)
			case fieldPointer:
				s.Pointer = int(protowire.DecodeZigZag(v))
			case fieldCompleted:
				s.Completed = protowire.DecodeBool(v)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Snapshot{}, errors.Wrapf(protowire.ParseError(n), "failed to skip field %d", num)
			}
			b = b[n:]
		}
	}
	return s, nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
