package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/madgrad/internal/tensor"
)

// ReadHeader reads the fixed prefix, JSON header and checksum from r.
//
// On success r is positioned at the start of the tensor data.
func ReadHeader(r io.Reader) (Header, [ChecksumSize]byte, error) {
	var header Header
	var checksum [ChecksumSize]byte

	// Read magic bytes
	magic := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(r, magic); err != nil {
		return header, checksum, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return header, checksum, ErrInvalidMagic
	}

	// Read version
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return header, checksum, fmt.Errorf("failed to read version: %w", err)
	}
	if version != FormatVersion {
		return header, checksum, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	// Read header size
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return header, checksum, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return header, checksum, ErrHeaderTooLarge
	}

	// Read header JSON
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return header, checksum, fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return header, checksum, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	// Read checksum
	if _, err := io.ReadFull(r, checksum[:]); err != nil {
		return header, checksum, fmt.Errorf("failed to read checksum: %w", err)
	}

	return header, checksum, nil
}

// ReadOptimizerState reads a .mdgr stream written by WriteOptimizerState.
//
// The data section is verified against the stored checksum and every tensor
// entry is validated before decoding.
func ReadOptimizerState(r io.Reader) (OptimizerState, error) {
	header, checksum, err := ReadHeader(r)
	if err != nil {
		return OptimizerState{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return OptimizerState{}, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateChecksum(ComputeChecksum(data), checksum); err != nil {
		return OptimizerState{}, err
	}
	if err := ValidateHeader(&header, int64(len(data))); err != nil {
		return OptimizerState{}, fmt.Errorf("validation failed: %w", err)
	}

	state := OptimizerState{
		OptimizerType: header.OptimizerType,
		Step:          header.Step,
		Groups:        header.Groups,
		Tensors:       make(map[string]*tensor.RawTensor, len(header.Tensors)),
	}

	for _, meta := range header.Tensors {
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape))
		if err != nil {
			return OptimizerState{}, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		buf := data[meta.Offset : meta.Offset+meta.Size]
		values := raw.AsFloat32()
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*float32Size:]))
		}
		state.Tensors[meta.Name] = raw
	}

	return state, nil
}

// ReadFile reads optimizer state from a .mdgr file at path.
func ReadFile(path string) (OptimizerState, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoint loading
	file, err := os.Open(path)
	if err != nil {
		return OptimizerState{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadOptimizerState(file)
}
