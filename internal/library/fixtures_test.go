package library

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// mp3FrameHeader is MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, no CRC, no padding
var mp3FrameHeader = []byte{0xFF, 0xFB, 0x90, 0x00}

const mp3FrameSize = 417

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x01, 0x02, 0x00, 0x03}

func syncsafe(n int) []byte {
	return []byte{byte(n >> 21 & 0x7f), byte(n >> 14 & 0x7f), byte(n >> 7 & 0x7f), byte(n & 0x7f)}
}

func id3Frame(id string, body []byte) []byte {
	b := make([]byte, 10+len(body))
	copy(b, id)
	binary.BigEndian.PutUint32(b[4:8], uint32(len(body)))
	copy(b[10:], body)
	return b
}

func textFrame(id, text string) []byte {
	return id3Frame(id, append([]byte{0x00}, text...))
}

func apicFrame(mime string, data []byte) []byte {
	body := []byte{0x00}
	body = append(body, mime...)
	body = append(body, 0x00, 0x03, 0x00) // mime terminator, front cover, empty description
	body = append(body, data...)
	return id3Frame("APIC", body)
}

func id3Tag(frames ...[]byte) []byte {
	var body []byte
	for _, f := range frames {
		body = append(body, f...)
	}
	header := append([]byte{'I', 'D', '3', 3, 0, 0}, syncsafe(len(body))...)
	return append(header, body...)
}

func mp3Frames(n int) []byte {
	out := make([]byte, 0, n*mp3FrameSize)
	for i := 0; i < n; i++ {
		frame := make([]byte, mp3FrameSize)
		copy(frame, mp3FrameHeader)
		out = append(out, frame...)
	}
	return out
}

type mp3Fixture struct {
	title  string
	artist string
	cover  []byte
	frames int
}

func writeMP3(t *testing.T, dir, name string, fx mp3Fixture) string {
	t.Helper()

	var frames [][]byte
	if fx.title != "" {
		frames = append(frames, textFrame("TIT2", fx.title))
	}
	if fx.artist != "" {
		frames = append(frames, textFrame("TPE1", fx.artist))
	}
	if len(fx.cover) > 0 {
		frames = append(frames, apicFrame("image/png", fx.cover))
	}

	data := append(id3Tag(frames...), mp3Frames(fx.frames)...)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func writeWAV(t *testing.T, dir, name string, sampleRate, seconds int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:   make([]int, sampleRate*seconds),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: 1},
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return path
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// flacFixture is a STREAMINFO block for 16-bit mono audio plus an optional
// VORBIS_COMMENT block. No audio frames follow.
type flacFixture struct {
	sampleRate   int
	totalSamples int64
	artist       string
}

func flacBlock(kind byte, last bool, body []byte) []byte {
	if last {
		kind |= 0x80
	}
	n := len(body)
	return append([]byte{kind, byte(n >> 16), byte(n >> 8), byte(n)}, body...)
}

func flacStreamInfo(sampleRate int, totalSamples int64) []byte {
	b := make([]byte, 34)
	binary.BigEndian.PutUint16(b[0:2], 4096)
	binary.BigEndian.PutUint16(b[2:4], 4096)
	// min and max frame size stay zero (unknown)
	packed := uint64(sampleRate)<<44 | uint64(0)<<41 | uint64(15)<<36 | uint64(totalSamples)&(1<<36-1)
	binary.BigEndian.PutUint64(b[10:18], packed)
	return b
}

func vorbisComment(comments ...string) []byte {
	vendor := "galaxyd"
	b := binary.LittleEndian.AppendUint32(nil, uint32(len(vendor)))
	b = append(b, vendor...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(comments)))
	for _, c := range comments {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(c)))
		b = append(b, c...)
	}
	return b
}

func writeFLAC(t *testing.T, dir, name string, fx flacFixture) string {
	t.Helper()

	data := []byte("fLaC")
	info := flacStreamInfo(fx.sampleRate, fx.totalSamples)
	if fx.artist == "" {
		data = append(data, flacBlock(0, true, info)...)
	} else {
		data = append(data, flacBlock(0, false, info)...)
		data = append(data, flacBlock(4, true, vorbisComment("ARTIST="+fx.artist))...)
	}
	return writeFile(t, dir, name, data)
}
