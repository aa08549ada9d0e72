package pipeline

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
)

// describeDevice formats device metadata for logs.
func describeDevice(dev audio.Device) string {
	desc := strings.TrimSpace(dev.Description)
	id := strings.TrimSpace(dev.ID)
	switch {
	case desc == "":
		return id
	case id == "":
		return desc
	default:
		return fmt.Sprintf("%s (%s)", desc, id)
	}
}

// createDebugFile opens a timestamped artifact under the state debug dir.
func createDebugFile(prefix, ext string) (*os.File, error) {
	state, err := config.StateDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(state, "debug")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.%s", prefix, time.Now().Format("20060102-150405.000"), ext)
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return f, nil
}

func (r *Recognizer) writeDebugAudio(pcm []byte) {
	if !r.cfg.Debug.EnableAudioDump || len(pcm) == 0 {
		return
	}

	f, err := createDebugFile("audio", "wav")
	if err != nil {
		r.logger.Warn("unable to create debug audio dump", "error", err)
		return
	}
	defer f.Close()

	if err := writeWAV(f, pcm, audio.SampleRate); err != nil {
		r.logger.Warn("unable to write debug audio dump", "error", err)
	}
}

// writeWAV writes mono s16le PCM behind a canonical 44-byte header.
func writeWAV(w io.Writer, pcm []byte, rate int) error {
	const (
		channels      = 1
		bitsPerSample = 16
		blockAlign    = channels * bitsPerSample / 8
	)

	header := struct {
		Riff          [4]byte
		ChunkSize     uint32
		Wave          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		Format:        1,
		Channels:      channels,
		SampleRate:    uint32(rate),
		ByteRate:      uint32(rate * blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: bitsPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
