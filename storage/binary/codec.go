// Package binary implements the document database's binary storage layer:
// the TLV document codec (this file), the revision engine, the in-memory
// store with its three secondary indexes, the write-ahead log, and the
// snapshot manager. Package service composes these into the durable,
// concurrency-safe document service described in spec §4.F.
//
// # Document Codec (TLV)
//
// A magic-less, version-prefixed, type-length-value format.
//
//	Field frame: 1-byte field-id, 4-byte little-endian length, payload.
//	Unknown field-ids are skipped by length.
//
//	Field-ids:
//	  1  FormatVersion  1 byte payload, current = 1
//	  2  Id             string
//	  3  Rev            string
//	  4  Deleted        1 byte
//	  5  Data           count + repeated (key, type-tag, value)
//	  6  Tags           count + repeated string
//	  7  Content        string
//
// Strings are a 4-byte little-endian length followed by UTF-8 bytes.
//
// Data type tags: 0=null, 1=string, 2=int32, 3=float64, 4=bool(1 byte),
// 5=list<string> (count + strings), 6=nested map (4-byte length +
// recursive encoding).
//
// The codec is deterministic: re-encoding a decoded document yields the
// same bytes, which the revision engine relies on for its content hash.
package binary

import (
	"bytes"
	"encoding/binary"
	"github.com/teyhd/peacedb/models"
	"fmt"
	"math"
)

const (
	fieldFormatVersion uint8 = 1
	fieldID            uint8 = 2
	fieldRev           uint8 = 3
	fieldDeleted       uint8 = 4
	fieldData          uint8 = 5
	fieldTags          uint8 = 6
	fieldContent       uint8 = 7

	// CurrentFormatVersion is the only FormatVersion payload this codec
	// accepts on decode.
	CurrentFormatVersion uint8 = 1

	typeNull   uint8 = 0
	typeString uint8 = 1
	typeInt32  uint8 = 2
	typeFloat64 uint8 = 3
	typeBool   uint8 = 4
	typeList   uint8 = 5
	typeMap    uint8 = 6
)

// Encode serializes doc into the canonical TLV body. The result is
// deterministic: encoding the same logical document twice, or decoding and
// re-encoding, always produces identical bytes.
func Encode(doc *models.Document) ([]byte, error) {
	var buf bytes.Buffer

	writeField(&buf, fieldFormatVersion, []byte{CurrentFormatVersion})
	writeField(&buf, fieldID, encodeString(doc.ID))
	writeField(&buf, fieldRev, encodeString(doc.Rev))

	deletedByte := byte(0)
	if doc.Deleted {
		deletedByte = 1
	}
	writeField(&buf, fieldDeleted, []byte{deletedByte})

	dataBytes, err := encodeData(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	writeField(&buf, fieldData, dataBytes)

	writeField(&buf, fieldTags, encodeStringList(doc.Tags))
	writeField(&buf, fieldContent, encodeString(doc.Content))

	return buf.Bytes(), nil
}

// Decode parses the canonical TLV body produced by Encode back into a
// Document. It rejects unsupported format versions, skips unknown
// field-ids by their declared length, and fails on an unknown data type
// tag.
func Decode(data []byte) (*models.Document, error) {
	doc := &models.Document{}
	sawVersion := false

	r := bytes.NewReader(data)
	for r.Len() > 0 {
		fieldID8, payload, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("decode field frame: %w", err)
		}

		switch fieldID8 {
		case fieldFormatVersion:
			if len(payload) != 1 {
				return nil, fmt.Errorf("decode: malformed FormatVersion field")
			}
			if payload[0] != CurrentFormatVersion {
				return nil, fmt.Errorf("decode: unsupported format version %d", payload[0])
			}
			sawVersion = true
		case fieldID:
			s, err := decodeString(payload)
			if err != nil {
				return nil, fmt.Errorf("decode Id: %w", err)
			}
			doc.ID = s
		case fieldRev:
			s, err := decodeString(payload)
			if err != nil {
				return nil, fmt.Errorf("decode Rev: %w", err)
			}
			doc.Rev = s
		case fieldDeleted:
			if len(payload) != 1 {
				return nil, fmt.Errorf("decode: malformed Deleted field")
			}
			doc.Deleted = payload[0] != 0
		case fieldData:
			m, err := decodeData(payload)
			if err != nil {
				return nil, fmt.Errorf("decode Data: %w", err)
			}
			doc.Data = m
		case fieldTags:
			tags, err := decodeStringList(payload)
			if err != nil {
				return nil, fmt.Errorf("decode Tags: %w", err)
			}
			doc.Tags = tags
		case fieldContent:
			s, err := decodeString(payload)
			if err != nil {
				return nil, fmt.Errorf("decode Content: %w", err)
			}
			doc.Content = s
		default:
			// Unknown field-id: already skipped by length in readField.
		}
	}

	if !sawVersion {
		return nil, fmt.Errorf("decode: missing FormatVersion field")
	}

	return doc, nil
}

func writeField(buf *bytes.Buffer, id uint8, payload []byte) {
	buf.WriteByte(id)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(payload)
}

func readField(r *bytes.Reader) (id uint8, payload []byte, err error) {
	idByte, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}

	var lenBuf [4]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("read length: %w", err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])

	payload = make([]byte, length)
	if _, err := readFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}

	return idByte, payload, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func encodeString(s string) []byte {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
	return buf.Bytes()
}

func decodeString(b []byte) (string, error) {
	if len(b) < 4 {
		return "", fmt.Errorf("truncated string length")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	if uint32(len(b)-4) < n {
		return "", fmt.Errorf("truncated string payload")
	}
	return string(b[4 : 4+n]), nil
}

func encodeStringList(list []string) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(list)))
	buf.Write(countBuf[:])
	for _, s := range list {
		buf.Write(encodeString(s))
	}
	return buf.Bytes()
}

func decodeStringList(b []byte) ([]string, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("truncated list count")
	}
	count := binary.LittleEndian.Uint32(b[:4])
	offset := 4
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if offset+4 > len(b) {
			return nil, fmt.Errorf("truncated list entry %d", i)
		}
		strLen := binary.LittleEndian.Uint32(b[offset : offset+4])
		end := offset + 4 + int(strLen)
		if end > len(b) {
			return nil, fmt.Errorf("truncated list entry %d payload", i)
		}
		out = append(out, string(b[offset+4:end]))
		offset = end
	}
	return out, nil
}

func encodeData(data map[string]models.Value) ([]byte, error) {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(data)))
	buf.Write(countBuf[:])

	for _, k := range sortedKeys(data) {
		buf.Write(encodeString(k))
		v := data[k]
		valBytes, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	return buf.Bytes(), nil
}

func encodeValue(v models.Value) ([]byte, error) {
	var buf bytes.Buffer
	switch v.Kind {
	case models.KindNull:
		buf.WriteByte(typeNull)
	case models.KindString:
		buf.WriteByte(typeString)
		buf.Write(encodeString(v.Str))
	case models.KindInt32:
		buf.WriteByte(typeInt32)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.I32))
		buf.Write(b[:])
	case models.KindFloat64:
		buf.WriteByte(typeFloat64)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F64))
		buf.Write(b[:])
	case models.KindBool:
		buf.WriteByte(typeBool)
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case models.KindListString:
		buf.WriteByte(typeList)
		buf.Write(encodeStringList(v.List))
	case models.KindMap:
		buf.WriteByte(typeMap)
		nested, err := encodeData(v.Map)
		if err != nil {
			return nil, err
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(nested)))
		buf.Write(lenBuf[:])
		buf.Write(nested)
	default:
		return nil, fmt.Errorf("encode: unsupported value kind %v", v.Kind)
	}
	return buf.Bytes(), nil
}

func decodeData(b []byte) (map[string]models.Value, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("truncated data count")
	}
	count := binary.LittleEndian.Uint32(b[:4])
	offset := 4
	out := make(map[string]models.Value, count)

	for i := uint32(0); i < count; i++ {
		if offset+4 > len(b) {
			return nil, fmt.Errorf("truncated data key length at entry %d", i)
		}
		keyLen := binary.LittleEndian.Uint32(b[offset : offset+4])
		keyStart := offset + 4
		keyEnd := keyStart + int(keyLen)
		if keyEnd > len(b) {
			return nil, fmt.Errorf("truncated data key at entry %d", i)
		}
		key := string(b[keyStart:keyEnd])
		offset = keyEnd

		if offset >= len(b) {
			return nil, fmt.Errorf("truncated data type tag at entry %d", i)
		}
		typeTag := b[offset]
		offset++

		val, consumed, err := decodeValue(typeTag, b[offset:])
		if err != nil {
			return nil, fmt.Errorf("decode value for key %q: %w", key, err)
		}
		out[key] = val
		offset += consumed
	}
	return out, nil
}

func decodeValue(typeTag uint8, b []byte) (models.Value, int, error) {
	switch typeTag {
	case typeNull:
		return models.NullValue(), 0, nil
	case typeString:
		if len(b) < 4 {
			return models.Value{}, 0, fmt.Errorf("truncated string value")
		}
		strLen := int(binary.LittleEndian.Uint32(b[:4]))
		if 4+strLen > len(b) {
			return models.Value{}, 0, fmt.Errorf("truncated string value payload")
		}
		return models.StringValue(string(b[4 : 4+strLen])), 4 + strLen, nil
	case typeInt32:
		if len(b) < 4 {
			return models.Value{}, 0, fmt.Errorf("truncated int32 value")
		}
		n := int32(binary.LittleEndian.Uint32(b[:4]))
		return models.Int32Value(n), 4, nil
	case typeFloat64:
		if len(b) < 8 {
			return models.Value{}, 0, fmt.Errorf("truncated float64 value")
		}
		bits := binary.LittleEndian.Uint64(b[:8])
		return models.Float64Value(math.Float64frombits(bits)), 8, nil
	case typeBool:
		if len(b) < 1 {
			return models.Value{}, 0, fmt.Errorf("truncated bool value")
		}
		return models.BoolValue(b[0] != 0), 1, nil
	case typeList:
		if len(b) < 4 {
			return models.Value{}, 0, fmt.Errorf("truncated list value")
		}
		count := binary.LittleEndian.Uint32(b[:4])
		offset := 4
		list := make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			if offset+4 > len(b) {
				return models.Value{}, 0, fmt.Errorf("truncated list entry %d", i)
			}
			strLen := int(binary.LittleEndian.Uint32(b[offset : offset+4]))
			end := offset + 4 + strLen
			if end > len(b) {
				return models.Value{}, 0, fmt.Errorf("truncated list entry %d payload", i)
			}
			list = append(list, string(b[offset+4:end]))
			offset = end
		}
		return models.ListStringValue(list), offset, nil
	case typeMap:
		if len(b) < 4 {
			return models.Value{}, 0, fmt.Errorf("truncated map value")
		}
		nestedLen := int(binary.LittleEndian.Uint32(b[:4]))
		if 4+nestedLen > len(b) {
			return models.Value{}, 0, fmt.Errorf("truncated map value payload")
		}
		nested, err := decodeData(b[4 : 4+nestedLen])
		if err != nil {
			return models.Value{}, 0, err
		}
		return models.MapValue(nested), 4 + nestedLen, nil
	default:
		return models.Value{}, 0, fmt.Errorf("unknown data type tag %d", typeTag)
	}
}

func sortedKeys(m map[string]models.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic ordering is required for the codec round-trip
	// property (§8.3): re-encoding the decoded form must yield the same
	// bytes, which requires a stable key iteration order.
	insertionSort(keys)
	return keys
}

func insertionSort(keys []string) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}
