package library

import (
	"io"
	"os"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/pkg/errors"
)

// sniffLen is how many leading bytes filetype needs to recognise a format
const sniffLen = 261

var (
	// ErrNotAudio is returned for files whose content is not a known audio format
	ErrNotAudio = errors.New("not an audio file")

	// ErrUnsupportedFormat is returned by duration readers that cannot handle a format
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Tags holds the metadata extracted from one file
type Tags struct {
	Title     string
	Artist    string
	Album     string
	Cover     []byte
	CoverMIME string
}

// TagReader extracts metadata from an audio file
type TagReader interface {
	Read(path string) (*Tags, error)
}

// Reader is the default TagReader. ID3, MP4, FLAC and Ogg tags are read with
// dhowden/tag; WAV files use their RIFF INFO list.
type Reader struct{}

// NewReader creates a tag reader
func NewReader() *Reader {
	return &Reader{}
}

// Read parses the tags of the file at path
func (r *Reader) Read(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer f.Close()

	kind, err := sniff(f)
	if err != nil {
		return nil, err
	}

	if kind == wavType {
		return readWAVTags(f)
	}

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read tags of %s", kind.Extension)
	}

	tags := &Tags{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		tags.Cover = pic.Data
		tags.CoverMIME = pic.MIMEType
	}
	return tags, nil
}

var wavType = filetype.GetType("wav")

// sniff identifies the file format from its first bytes and rewinds f.
func sniff(f io.ReadSeeker) (types.Type, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return types.Unknown, ErrNotAudio
		}
		return types.Unknown, errors.Wrap(err, "sniff")
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == types.Unknown {
		return types.Unknown, ErrNotAudio
	}
	// m4a frequently identifies as an mp4 container
	if kind.MIME.Type != "audio" && kind.MIME.Type != "video" {
		return types.Unknown, ErrNotAudio
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return types.Unknown, errors.Wrap(err, "rewind")
	}
	return kind, nil
}

func readWAVTags(f io.ReadSeeker) (*Tags, error) {
	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return nil, errors.Wrap(ErrNotAudio, "invalid wav")
	}

	d.ReadMetadata()

	tags := &Tags{}
	if d.Metadata != nil {
		tags.Title = d.Metadata.Title
		tags.Artist = d.Metadata.Artist
		tags.Album = d.Metadata.Product
	}
	return tags, nil
}
