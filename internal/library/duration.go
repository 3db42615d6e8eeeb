package library

import (
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/tcolgate/mp3"
	"github.com/tphakala/flac"
)

// DurationReader measures the playing time of an audio file
type DurationReader interface {
	Duration(path string) (time.Duration, error)
}

// FormatDuration dispatches on the sniffed container format
type FormatDuration struct{}

// NewFormatDuration creates the default duration reader
func NewFormatDuration() *FormatDuration {
	return &FormatDuration{}
}

// Duration returns the duration of the file at path
func (fd *FormatDuration) Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open")
	}
	defer f.Close()

	kind, err := sniff(f)
	if err != nil {
		return 0, err
	}

	switch kind.Extension {
	case "mp3":
		return mp3Duration(f)
	case "wav":
		return wavDuration(f)
	case "flac":
		return flacDuration(f)
	default:
		return 0, errors.Wrap(ErrUnsupportedFormat, kind.Extension)
	}
}

// mp3Duration sums the duration of every MPEG frame. ID3 tags are skipped
// by the decoder.
func mp3Duration(r io.Reader) (time.Duration, error) {
	d := mp3.NewDecoder(r)

	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
	)
	for {
		if err := d.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			// a truncated trailing frame still leaves a usable total
			if errors.Is(err, io.ErrUnexpectedEOF) && total > 0 {
				return total, nil
			}
			return 0, errors.Wrap(err, "decode mp3 frame")
		}
		total += frame.Duration()
	}
}

func wavDuration(r io.ReadSeeker) (time.Duration, error) {
	d := wav.NewDecoder(r)
	d.ReadInfo()
	if !d.IsValidFile() {
		return 0, errors.Wrap(ErrNotAudio, "invalid wav")
	}
	if err := d.FwdToPCM(); err != nil {
		return 0, errors.Wrap(err, "seek to wav data chunk")
	}

	bytesPerSecond := int(d.SampleRate) * int(d.NumChans) * int(d.BitDepth) / 8
	if bytesPerSecond == 0 {
		return 0, errors.New("wav header has no byte rate")
	}
	seconds := float64(d.PCMSize) / float64(bytesPerSecond)
	return time.Duration(seconds * float64(time.Second)), nil
}

func flacDuration(r io.Reader) (time.Duration, error) {
	d, err := flac.NewDecoder(r)
	if err != nil {
		return 0, errors.Wrap(err, "read flac stream info")
	}
	if d.SampleRate <= 0 {
		return 0, errors.New("flac stream info has no sample rate")
	}
	seconds := float64(d.TotalSamples) / float64(d.SampleRate)
	return time.Duration(seconds * float64(time.Second)), nil
}
