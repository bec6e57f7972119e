package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"
)

const libraryVersion = "0.1.0"

// WriteOptimizerState writes state to w in .mdgr format.
//
// Tensors are stored in name order so the same state always produces the
// same data section.
func WriteOptimizerState(w io.Writer, state OptimizerState) error {
	names := make([]string, 0, len(state.Tensors))
	for name, raw := range state.Tensors {
		if raw == nil {
			return fmt.Errorf("tensor %q is nil", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		Version:       libraryVersion,
		CreatedAt:     time.Now().UTC(),
		OptimizerType: state.OptimizerType,
		Step:          state.Step,
		Groups:        state.Groups,
		Tensors:       make([]TensorMeta, 0, len(names)),
	}

	// Calculate tensor offsets
	var currentOffset int64
	for _, name := range names {
		raw := state.Tensors[name]
		size := int64(raw.NumElements()) * float32Size
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			Shape:  []int(raw.Shape()),
			Offset: currentOffset,
			Size:   size,
		})
		currentOffset += size
	}

	// Encode tensor data
	data := make([]byte, currentOffset)
	for i, name := range names {
		buf := data[header.Tensors[i].Offset:]
		for j, v := range state.Tensors[name].AsFloat32() {
			binary.LittleEndian.PutUint32(buf[j*float32Size:], math.Float32bits(v))
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	// Write magic bytes
	if _, err := io.WriteString(w, MagicBytes); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}

	// Write version
	if err := binary.Write(w, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}

	// Write header size
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}

	// Write header JSON
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write checksum
	checksum := ComputeChecksum(data)
	if _, err := w.Write(checksum[:]); err != nil {
		return fmt.Errorf("failed to write checksum: %w", err)
	}

	// Write tensor data
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}

	return nil
}

// WriteFile writes state to a .mdgr file at path.
func WriteFile(path string, state OptimizerState) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for checkpoint saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteOptimizerState(file, state); err != nil {
		_ = file.Close() // Best effort close on error
		return err
	}
	return file.Close()
}
