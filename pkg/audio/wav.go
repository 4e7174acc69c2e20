package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for uncompressed PCM.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // byte length of the data chunk
}

// EncodeWAV wraps raw mono 16-bit little-endian PCM bytes in a WAV container
// at the given sample rate. This is the wire format for synthesised audio
// sent to the listening peer.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio: cannot encode empty PCM buffer")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(pcm))
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("audio: write WAV header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// DecodeWAV extracts the raw PCM data and sample rate from a mono 16-bit PCM
// WAV file. Used to strip container framing from TTS server responses before
// re-encoding at delivery time.
//
// The RIFF body is walked chunk by chunk, so files carrying extra chunks
// (LIST, fact) before the data chunk decode correctly. The fmt chunk must
// precede data, which every writer in practice honours.
func DecodeWAV(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < 12 {
		return nil, 0, fmt.Errorf("audio: WAV data too short: need at least 12 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("audio: not a RIFF/WAVE file")
	}

	var (
		fmtSeen bool
		format  uint16
		chans   uint16
		rate    uint32
		bits    uint16
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) || end < body {
			// A truncated or corrupt size field; clamp to what is present.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, 0, fmt.Errorf("audio: fmt chunk too short: %d bytes", end-body)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			chans = binary.LittleEndian.Uint16(data[body+2 : body+4])
			rate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			fmtSeen = true

		case "data":
			if !fmtSeen {
				return nil, 0, fmt.Errorf("audio: data chunk before fmt chunk")
			}
			if format != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported audio format %d (only PCM)", format)
			}
			if bits != 16 {
				return nil, 0, fmt.Errorf("audio: unsupported bit depth %d (only 16-bit)", bits)
			}
			if chans != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported channel count %d (only mono)", chans)
			}
			return data[body:end], int(rate), nil
		}

		// Chunks are word-aligned: an odd size carries one pad byte.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}
	return nil, 0, fmt.Errorf("audio: no data chunk found")
}
