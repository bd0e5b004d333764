package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

const (
	dtypeI32 = "I32"
	dtypeI64 = "I64"
)

// Store is a decoded safetensors payload with lazily decoded tensors.
type Store struct {
	raw      []byte
	entries  map[string]storeEntry
	names    []string
	metadata map[string]string
}

type storeEntry struct {
	DType string
	Shape []int64
	Start int
	End   int
}

type storeHeaderEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

func OpenStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	return OpenStoreFromBytes(data)
}

func OpenStoreFromBytes(data []byte) (*Store, error) {
	headerEnd, header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(header))
	for name := range header {
		keys = append(keys, name)
	}

	sort.Strings(keys)

	entries := make(map[string]storeEntry, len(keys))
	names := make([]string, 0, len(keys))

	var metadata map[string]string

	for _, name := range keys {
		if name == metadataKey {
			if err := json.Unmarshal(header[name], &metadata); err != nil {
				return nil, fmt.Errorf("safetensors: decode metadata: %w", err)
			}

			continue
		}

		var entry storeHeaderEntry
		if err := json.Unmarshal(header[name], &entry); err != nil {
			return nil, fmt.Errorf("safetensors: decode header entry %q: %w", name, err)
		}

		if err := validateHeaderEntry(name, entry); err != nil {
			return nil, err
		}

		// Offsets are relative to the end of the header; bound them before
		// adding so huge values cannot wrap.
		if entry.Offsets[1] > len(data)-headerEnd {
			return nil, fmt.Errorf(
				"safetensors: tensor %q data %v exceeds payload size %d",
				name,
				entry.Offsets,
				len(data)-headerEnd,
			)
		}

		start := headerEnd + entry.Offsets[0]
		end := headerEnd + entry.Offsets[1]
		if start < headerEnd || end < start || end > len(data) {
			return nil, fmt.Errorf(
				"safetensors: tensor %q data [%d:%d] outside file of %d bytes",
				name,
				start,
				end,
				len(data),
			)
		}

		elemCount, err := shapeElementCount(entry.Shape)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}

		expectedBytes := int(elemCount) * dtypeBytes(entry.DType)

		if actualBytes := end - start; actualBytes != expectedBytes {
			return nil, fmt.Errorf(
				"safetensors: tensor %q needs %d bytes but data has %d",
				name,
				expectedBytes,
				actualBytes,
			)
		}

		entries[name] = storeEntry{
			DType: strings.ToUpper(entry.DType),
			Shape: append([]int64{}, entry.Shape...),
			Start: start,
			End:   end,
		}
		names = append(names, name)
	}

	if len(entries) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	return &Store{
		raw:      data,
		entries:  entries,
		names:    names,
		metadata: metadata,
	}, nil
}

func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

// Metadata returns a copy of the "__metadata__" header object.
func (s *Store) Metadata() map[string]string {
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}

	return out
}

func (s *Store) Tensor(name string) (*Tensor, error) {
	entry, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("safetensors: tensor %q not found (available: %s)", name, strings.Join(s.names, ", "))
	}

	data, err := decodeTensorData(s.raw[entry.Start:entry.End], entry.DType)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q decode: %w", name, err)
	}

	return &Tensor{
		Name:  name,
		Shape: append([]int64{}, entry.Shape...),
		Data:  data,
	}, nil
}

func (s *Store) Close() {
	s.raw = nil
	s.entries = nil
	s.names = nil
}

func decodeHeader(data []byte) (int, map[string]json.RawMessage, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("safetensors: file too short (%d bytes)", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds file size %d", headerLen, len(data))
	}

	headerEnd := 8 + int(headerLen)

	var header map[string]json.RawMessage

	err := json.Unmarshal(data[8:headerEnd], &header)
	if err != nil {
		return 0, nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	return headerEnd, header, nil
}

func validateHeaderEntry(name string, entry storeHeaderEntry) error {
	switch strings.ToUpper(entry.DType) {
	case dtypeI32, dtypeI64:
	default:
		return fmt.Errorf("safetensors: tensor %q has unsupported dtype %q", name, entry.DType)
	}

	if entry.Offsets[0] < 0 || entry.Offsets[1] < entry.Offsets[0] {
		return fmt.Errorf("safetensors: tensor %q has invalid data offsets %v", name, entry.Offsets)
	}

	return nil
}

func shapeElementCount(shape []int64) (int64, error) {
	total := int64(1)

	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension %d", d)
		}

		if d == 0 {
			return 0, nil
		}

		if total > math.MaxInt32/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		total *= d
	}

	return total, nil
}

func dtypeBytes(dtype string) int {
	if strings.ToUpper(dtype) == dtypeI64 {
		return 8
	}

	return 4
}

func decodeTensorData(raw []byte, dtype string) ([]int32, error) {
	switch strings.ToUpper(dtype) {
	case dtypeI32:
		out := make([]int32, len(raw)/4)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}

		return out, nil
	case dtypeI64:
		out := make([]int32, len(raw)/8)
		for i := range out {
			v := int64(binary.LittleEndian.Uint64(raw[i*8:]))
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("value %d at %d overflows int32", v, i)
			}

			out[i] = int32(v)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
}
