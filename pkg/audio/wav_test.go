package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/MrWong99/babelcall/pkg/audio"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := pcmFromSamples([]int16{100, -200, 300, -400})

	wav, err := audio.EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Errorf("WAV length: got %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[:4], []byte("RIFF")) {
		t.Errorf("missing RIFF magic, got %q", wav[:4])
	}

	gotPCM, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("sample rate: got %d, want 16000", rate)
	}
	if !bytes.Equal(gotPCM, pcm) {
		t.Errorf("PCM round trip mismatch")
	}
}

func TestEncodeWAV_Invalid(t *testing.T) {
	if _, err := audio.EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty PCM")
	}
	if _, err := audio.EncodeWAV([]byte{1, 2}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

// buildWAV assembles a RIFF file from raw chunks, so tests can exercise
// layouts the encoder never produces.
func buildWAV(chunks ...[]byte) []byte {
	var body bytes.Buffer
	for _, c := range chunks {
		body.Write(c)
	}
	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(4+body.Len()))
	out.WriteString("WAVE")
	out.Write(body.Bytes())
	return out.Bytes()
}

func chunk(id string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(id)
	binary.Write(&b, binary.LittleEndian, uint32(len(payload)))
	b.Write(payload)
	if len(payload)%2 == 1 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func fmtChunk(rate uint32) []byte {
	var p bytes.Buffer
	binary.Write(&p, binary.LittleEndian, uint16(1))   // PCM
	binary.Write(&p, binary.LittleEndian, uint16(1))   // mono
	binary.Write(&p, binary.LittleEndian, rate)        // sample rate
	binary.Write(&p, binary.LittleEndian, rate*2)      // byte rate
	binary.Write(&p, binary.LittleEndian, uint16(2))   // block align
	binary.Write(&p, binary.LittleEndian, uint16(16))  // bits per sample
	return chunk("fmt ", p.Bytes())
}

func TestDecodeWAV_SkipsNonDataChunks(t *testing.T) {
	pcm := pcmFromSamples([]int16{100, -200, 300})

	// A LIST chunk between fmt and data, as TTS servers sometimes emit.
	wav := buildWAV(
		fmtChunk(22050),
		chunk("LIST", []byte("INFOISFTsynth")),
		chunk("data", pcm),
	)

	gotPCM, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 22050 {
		t.Errorf("sample rate: got %d, want 22050", rate)
	}
	if !bytes.Equal(gotPCM, pcm) {
		t.Errorf("PCM payload: got %v, want %v", gotPCM, pcm)
	}
}

func TestDecodeWAV_RejectsUnsupportedFormats(t *testing.T) {
	pcm := pcmFromSamples([]int16{1, 2})

	stereo := fmtChunk(16000)
	stereo[10] = 2 // channel count field
	if _, _, err := audio.DecodeWAV(buildWAV(stereo, chunk("data", pcm))); err == nil {
		t.Error("expected error for stereo WAV")
	}

	if _, _, err := audio.DecodeWAV(buildWAV(chunk("data", pcm))); err == nil {
		t.Error("expected error for data chunk without fmt")
	}

	if _, _, err := audio.DecodeWAV(buildWAV(fmtChunk(16000))); err == nil {
		t.Error("expected error for missing data chunk")
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, _, err := audio.DecodeWAV([]byte("too short")); err == nil {
		t.Error("expected error for truncated data")
	}
	garbage := make([]byte, 64)
	copy(garbage, "NOTARIFF")
	if _, _, err := audio.DecodeWAV(garbage); err == nil {
		t.Error("expected error for non-RIFF data")
	}
}
