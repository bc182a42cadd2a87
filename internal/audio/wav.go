package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/yoockh/voicerelay/internal/utils"
)

// Fixed output format of every encoded utterance.
const (
	SampleRate  = 16000
	BitDepth    = 16
	NumChannels = 1

	sampleWidth = BitDepth / 8
	pcmFormat   = 1 // WAVE_FORMAT_PCM
)

// EncodeWAV wraps 16-bit little-endian mono PCM in a WAV container. An empty
// input yields a header-only, zero-duration container. Input whose length is
// not a whole number of samples is rejected with CodeDataIntegrity.
func EncodeWAV(pcm []byte) ([]byte, error) {
	const op = "audio.EncodeWAV"

	if len(pcm)%sampleWidth != 0 {
		return nil, utils.E(utils.CodeDataIntegrity, op,
			fmt.Sprintf("accumulation of %d bytes is not a multiple of %d", len(pcm), sampleWidth), nil)
	}

	samples := make([]int, len(pcm)/sampleWidth)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*sampleWidth:])))
	}

	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, SampleRate, BitDepth, NumChannels, pcmFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: NumChannels, SampleRate: SampleRate},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to write samples", err)
	}
	if err := enc.Close(); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to finalize container", err)
	}
	return out.Bytes(), nil
}

// DecodeWAV parses a container produced by EncodeWAV and returns its samples.
func DecodeWAV(container []byte) ([]int16, error) {
	const op = "audio.DecodeWAV"

	d := wav.NewDecoder(bytes.NewReader(container))
	if !d.IsValidFile() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "not a wav container", nil)
	}
	if d.SampleRate != SampleRate || d.BitDepth != BitDepth || d.NumChans != NumChannels {
		return nil, utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("unexpected format %dHz/%dbit/%dch", d.SampleRate, d.BitDepth, d.NumChans), nil)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "failed to read samples", err)
	}
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = int16(v)
	}
	return out, nil
}

// memWriteSeeker is the in-memory io.WriteSeeker the wav encoder needs to
// patch its size fields after the data chunk is written.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memWriteSeeker: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("memWriteSeeker: negative position")
	}
	m.pos = int(next)
	return next, nil
}

func (m *memWriteSeeker) Bytes() []byte { return m.buf }
