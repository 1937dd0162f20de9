package vectorindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

// Snapshot layout, little-endian:
//
//	magic "NXIX" | version u16 | dim u32 | count u32
//	per entry: idLen u32 | id | textLen u32 | text | page u32 | offset u32 | dim x f32
const (
	snapshotMagic   = "NXIX"
	snapshotVersion = 1
	headerSize      = 4 + 2 + 4 + 4
)

var errTruncated = errors.New("truncated snapshot")

// Encode serializes a handle into snapshot bytes.
func Encode(h *Handle) ([]byte, error) {
	size := headerSize
	for _, p := range h.passages {
		size += 4 + len(p.ID) + 4 + len(p.Text) + 8 + 4*h.dim
	}
	out := make([]byte, 0, size)
	out = append(out, snapshotMagic...)
	out = binary.LittleEndian.AppendUint16(out, snapshotVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(h.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(h.passages)))
	for i, p := range h.passages {
		if p.Page < 0 || p.Offset < 0 {
			return nil, fmt.Errorf("vectorindex: passage %d has negative source position", i)
		}
		out = appendString(out, p.ID)
		out = appendString(out, p.Text)
		out = binary.LittleEndian.AppendUint32(out, uint32(p.Page))
		out = binary.LittleEndian.AppendUint32(out, uint32(p.Offset))
		for _, v := range h.vectors[i] {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out, nil
}

// Decode rebuilds a handle from snapshot bytes. Any structural problem is
// reported as domain.ErrIndexCorrupt.
func Decode(ref domain.DocumentIndexRef, data []byte) (*Handle, error) {
	h, err := decode(ref, data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexCorrupt, "decode index snapshot", err)
	}
	return h, nil
}

func decode(ref domain.DocumentIndexRef, data []byte) (*Handle, error) {
	if len(data) < headerSize {
		return nil, errTruncated
	}
	if string(data[:4]) != snapshotMagic {
		return nil, fmt.Errorf("bad magic %q", data[:4])
	}
	r := reader{data: data, off: 4}
	version, err := r.u16()
	if err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}
	dim32, err := r.u32()
	if err != nil {
		return nil, err
	}
	count32, err := r.u32()
	if err != nil {
		return nil, err
	}
	dim, count := int(dim32), int(count32)
	if count > 0 && dim == 0 {
		return nil, fmt.Errorf("snapshot has %d entries but zero dimension", count)
	}
	// Each entry needs at least 16 bytes of framing plus its vector.
	if count > len(data)/(16+4*dim) {
		return nil, fmt.Errorf("entry count %d exceeds snapshot size", count)
	}

	passages := make([]domain.Passage, count)
	vectors := make([][]float32, count)
	for i := 0; i < count; i++ {
		id, err := r.str()
		if err != nil {
			return nil, fmt.Errorf("entry %d id: %w", i, err)
		}
		text, err := r.str()
		if err != nil {
			return nil, fmt.Errorf("entry %d text: %w", i, err)
		}
		page, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("entry %d page: %w", i, err)
		}
		offset, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("entry %d offset: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			bits, err := r.u32()
			if err != nil {
				return nil, fmt.Errorf("entry %d vector: %w", i, err)
			}
			vec[j] = math.Float32frombits(bits)
		}
		passages[i] = domain.Passage{ID: id, Text: text, Page: int(page), Offset: int(offset)}
		vectors[i] = vec
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("%d trailing bytes", len(data)-r.off)
	}
	return New(ref, passages, vectors)
}

func appendString(out []byte, s string) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
	return append(out, s...)
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) u16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, errTruncated
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, errTruncated
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if int(n) > len(r.data)-r.off {
		return "", errTruncated
	}
	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}
