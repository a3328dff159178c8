package transcode

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	oggPageHeaderSize = 27
	oggMaxLacing      = 255
	opusHeadSize      = 19
)

var (
	oggCapturePattern = []byte("OggS")
	opusHeadMagic     = []byte("OpusHead")
	opusTagsMagic     = []byte("OpusTags")
)

// OggPacketReader splits an Ogg bitstream into packets. Only the logical
// stream of the first page is followed; pages of other streams are skipped.
// Page checksums are not verified.
type OggPacketReader struct {
	r      *bufio.Reader
	header [oggPageHeaderSize]byte

	lacing  []byte
	body    []byte
	segment int
	offset  int
	partial []byte

	serial     uint32
	haveSerial bool
	pages      int64
}

// NewOggPacketReader creates a reader over r
func NewOggPacketReader(r io.Reader) *OggPacketReader {
	return &OggPacketReader{
		r:      bufio.NewReader(r),
		lacing: make([]byte, 0, oggMaxLacing),
		body:   make([]byte, 0, oggMaxLacing*oggMaxLacing),
	}
}

// NextPacket returns the next complete packet, or io.EOF once the stream ends
// on a packet boundary
func (o *OggPacketReader) NextPacket() ([]byte, error) {
	for {
		for o.segment < len(o.lacing) {
			n := int(o.lacing[o.segment])
			o.segment++
			o.partial = append(o.partial, o.body[o.offset:o.offset+n]...)
			o.offset += n
			if n < oggMaxLacing {
				packet := append([]byte(nil), o.partial...)
				o.partial = o.partial[:0]
				return packet, nil
			}
		}

		if err := o.readPage(); err != nil {
			if errors.Is(err, io.EOF) && len(o.partial) > 0 {
				return nil, fmt.Errorf("%w: stream ends inside a packet", io.ErrUnexpectedEOF)
			}
			return nil, err
		}
	}
}

// Pages returns how many pages of the followed stream were read
func (o *OggPacketReader) Pages() int64 {
	return o.pages
}

func (o *OggPacketReader) readPage() error {
	for {
		if _, err := io.ReadFull(o.r, o.header[:]); err != nil {
			return err
		}
		if !bytes.Equal(o.header[:4], oggCapturePattern) {
			return fmt.Errorf("%w: missing Ogg capture pattern", ErrUnsupportedFormat)
		}
		if o.header[4] != 0 {
			return fmt.Errorf("%w: Ogg version %d", ErrUnsupportedFormat, o.header[4])
		}

		segments := int(o.header[26])
		o.lacing = o.lacing[:segments]
		if _, err := io.ReadFull(o.r, o.lacing); err != nil {
			return unexpected(err)
		}
		size := 0
		for _, l := range o.lacing {
			size += int(l)
		}
		o.body = o.body[:size]
		if _, err := io.ReadFull(o.r, o.body); err != nil {
			return unexpected(err)
		}

		serial := binary.LittleEndian.Uint32(o.header[14:18])
		if !o.haveSerial {
			o.serial = serial
			o.haveSerial = true
		}
		if serial != o.serial {
			continue
		}

		o.segment = 0
		o.offset = 0
		o.pages++
		return nil
	}
}

// unexpected turns a clean EOF inside a page into io.ErrUnexpectedEOF
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// OpusHead is the identification header of an Ogg Opus stream
type OpusHead struct {
	Version         uint8
	Channels        int
	PreSkip         int
	InputSampleRate int
	OutputGainQ8    int16
	MappingFamily   uint8
}

// ParseOpusHead decodes the first packet of an Ogg Opus stream
func ParseOpusHead(packet []byte) (OpusHead, error) {
	if len(packet) < opusHeadSize || !bytes.HasPrefix(packet, opusHeadMagic) {
		return OpusHead{}, fmt.Errorf("%w: missing OpusHead", ErrUnsupportedFormat)
	}
	head := OpusHead{
		Version:         packet[8],
		Channels:        int(packet[9]),
		PreSkip:         int(binary.LittleEndian.Uint16(packet[10:12])),
		InputSampleRate: int(binary.LittleEndian.Uint32(packet[12:16])),
		OutputGainQ8:    int16(binary.LittleEndian.Uint16(packet[16:18])),
		MappingFamily:   packet[18],
	}
	if head.Version>>4 != 0 {
		return OpusHead{}, fmt.Errorf("%w: OpusHead version %d", ErrUnsupportedFormat, head.Version)
	}
	if head.Channels == 0 {
		return OpusHead{}, fmt.Errorf("%w: OpusHead with zero channels", ErrUnsupportedFormat)
	}
	return head, nil
}

// DecodeOggOpus reads an Ogg Opus stream into mono samples at OpusOutputRate.
// The encoder pre-skip is dropped from the start of the output.
func DecodeOggOpus(r io.Reader) (*AudioData, error) {
	packets := NewOggPacketReader(r)

	first, err := packets.NextPacket()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read Ogg stream: %w", err)
	}
	head, err := ParseOpusHead(first)
	if err != nil {
		return nil, err
	}

	tags, err := packets.NextPacket()
	if err != nil {
		return nil, fmt.Errorf("failed to read OpusTags: %w", err)
	}
	if !bytes.HasPrefix(tags, opusTagsMagic) {
		return nil, fmt.Errorf("%w: missing OpusTags", ErrUnsupportedFormat)
	}

	decoder := NewOpusDecoder()
	var pcm []float64
	for {
		packet, err := packets.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Ogg stream: %w", err)
		}
		samples, err := decoder.DecodePacket(packet)
		if err != nil {
			return nil, fmt.Errorf("failed to decode packet %d: %w", decoder.Packets()+1, err)
		}
		pcm = append(pcm, samples...)
	}

	pcm = pcm[min(head.PreSkip, len(pcm)):]
	if len(pcm) == 0 {
		return nil, ErrEmptyInput
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: OpusOutputRate,
		Channels:   head.Channels,
		Duration:   samplesDuration(len(pcm), OpusOutputRate),
		Timestamp:  time.Now(),
		Metadata: &StreamMetadata{
			Format:     "ogg",
			Codec:      "opus",
			SampleRate: head.InputSampleRate,
			Channels:   head.Channels,
			BitDepth:   16,
			Timestamp:  time.Now(),
		},
	}, nil
}

// DecodeOggOpusFile opens and decodes an Ogg Opus file
func DecodeOggOpusFile(path string) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	data, err := DecodeOggOpus(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	data.Metadata.URL = path
	data.Timestamp = fileTimestamp(path)
	return data, nil
}
