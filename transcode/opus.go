package transcode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/opus"

	"github.com/RyanBlaney/sonido-cochlea/logging"
)

// OpusOutputRate is the rate of the PCM the Opus decoder writes
const OpusOutputRate = 48000

// maxOpusPacketMs bounds the output of one packet (a code 3 packet holds at
// most 120 ms)
const maxOpusPacketMs = 120

// ErrOpusPacket is returned for packets the decoder rejects
var ErrOpusPacket = errors.New("invalid opus packet")

// OpusDecoder turns a stream of Opus packets into mono float samples. The
// decoder keeps inter-packet state, so use one per stream.
type OpusDecoder struct {
	decoder *opus.Decoder
	raw     []byte
	pcm     []float64

	packets int64
	logger  logging.Logger
}

// NewOpusDecoder creates a decoder sized for the largest packet
func NewOpusDecoder() *OpusDecoder {
	decoder := opus.NewDecoder()
	maxSamples := OpusOutputRate * maxOpusPacketMs / 1000 * 2

	return &OpusDecoder{
		decoder: &decoder,
		raw:     make([]byte, maxSamples*2),
		pcm:     make([]float64, 0, maxSamples),
		logger: logging.WithFields(logging.Fields{
			"component": "opus_decoder",
		}),
	}
}

// DecodePacket decodes one packet. The returned samples are mono at
// OpusOutputRate and are overwritten by the next call.
func (d *OpusDecoder) DecodePacket(packet []byte) ([]float64, error) {
	if len(packet) == 0 {
		return nil, ErrEmptyInput
	}

	frameSamples, err := OpusPacketSamples(packet, OpusOutputRate)
	if err != nil {
		return nil, err
	}

	bandwidth, isStereo, err := d.decoder.Decode(packet, d.raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpusPacket, err)
	}

	channels := 1
	if isStereo {
		channels = 2
	}
	n := min(frameSamples*channels, len(d.raw)/2)

	interleaved := d.pcm[:0]
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(d.raw[i*2:]))
		interleaved = append(interleaved, float64(v)/32768.0)
	}
	d.pcm = MixToMono(interleaved, interleaved, channels)
	d.packets++

	if d.packets == 1 {
		d.logger.Debug("First opus packet decoded", logging.Fields{
			"bandwidth": bandwidth.String(),
			"stereo":    isStereo,
			"samples":   len(d.pcm),
		})
	}
	return d.pcm, nil
}

// Packets returns how many packets were decoded
func (d *OpusDecoder) Packets() int64 {
	return d.packets
}

// opusFrameTenthsMs maps the TOC configuration number to the frame length in
// tenths of a millisecond
var opusFrameTenthsMs = [32]int{
	100, 200, 400, 600, // SILK NB
	100, 200, 400, 600, // SILK MB
	100, 200, 400, 600, // SILK WB
	100, 200, // hybrid SWB
	100, 200, // hybrid FB
	25, 50, 100, 200, // CELT NB
	25, 50, 100, 200, // CELT WB
	25, 50, 100, 200, // CELT SWB
	25, 50, 100, 200, // CELT FB
}

// OpusPacketSamples returns the samples per channel a packet decodes to at
// rate, from its table-of-contents byte and frame count
func OpusPacketSamples(packet []byte, rate int) (int, error) {
	if len(packet) == 0 {
		return 0, ErrEmptyInput
	}
	toc := packet[0]
	tenths := opusFrameTenthsMs[toc>>3]

	frames := 1
	switch toc & 0x3 {
	case 1, 2:
		frames = 2
	case 3:
		if len(packet) < 2 {
			return 0, fmt.Errorf("%w: code 3 packet without frame count", ErrOpusPacket)
		}
		frames = int(packet[1] & 0x3f)
		if frames == 0 {
			return 0, fmt.Errorf("%w: zero frame count", ErrOpusPacket)
		}
	}

	if frames*tenths > maxOpusPacketMs*10 {
		return 0, fmt.Errorf("%w: %d frames of %.1f ms exceed %d ms", ErrOpusPacket, frames, float64(tenths)/10, maxOpusPacketMs)
	}
	return frames * tenths * rate / 10000, nil
}
