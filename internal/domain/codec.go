package domain

import "strings"

// VideoCodec identifies the requested video codec.
type VideoCodec int

const (
	VideoCodecAuto VideoCodec = iota
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecH264
	VideoCodecAV1
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecVP8:
		return "vp8"
	case VideoCodecVP9:
		return "vp9"
	case VideoCodecH264:
		return "h264"
	case VideoCodecAV1:
		return "av1"
	default:
		return "auto"
	}
}

// MimeType returns the MIME type used for codec matching in the engine.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecVP8:
		return "video/VP8"
	case VideoCodecVP9:
		return "video/VP9"
	case VideoCodecH264:
		return "video/H264"
	case VideoCodecAV1:
		return "video/AV1"
	default:
		return ""
	}
}

// EncodingName is the rtpmap encoding name as it appears in a session description.
func (c VideoCodec) EncodingName() string {
	switch c {
	case VideoCodecVP8:
		return "VP8"
	case VideoCodecVP9:
		return "VP9"
	case VideoCodecH264:
		return "H264"
	case VideoCodecAV1:
		return "AV1"
	default:
		return ""
	}
}

// ParseVideoCodec maps a configuration value to a codec. "multi" is an alias of VP9.
// Unknown or empty values yield VideoCodecAuto.
func ParseVideoCodec(s string) VideoCodec {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vp8":
		return VideoCodecVP8
	case "vp9", "multi":
		return VideoCodecVP9
	case "h264":
		return VideoCodecH264
	case "av1":
		return VideoCodecAV1
	default:
		return VideoCodecAuto
	}
}

// AudioCodec identifies the audio codec.
type AudioCodec int

const (
	AudioCodecOpus AudioCodec = iota
	AudioCodecMultiOpus
)

func (c AudioCodec) String() string {
	if c == AudioCodecMultiOpus {
		return "multiopus"
	}
	return "opus"
}

func (c AudioCodec) MimeType() string {
	if c == AudioCodecMultiOpus {
		return "audio/multiopus"
	}
	return "audio/opus"
}

func (c AudioCodec) EncodingName() string {
	if c == AudioCodecMultiOpus {
		return "multiopus"
	}
	return "opus"
}

// AudioCodecForChannels picks Opus for mono and stereo capture and MultiOpus above that.
func AudioCodecForChannels(channels int) AudioCodec {
	if channels > 2 {
		return AudioCodecMultiOpus
	}
	return AudioCodecOpus
}

// Protocol restricts which ICE candidate transports are used.
type Protocol int

const (
	ProtocolAuto Protocol = iota
	ProtocolUDP
	ProtocolTCP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	default:
		return "auto"
	}
}

func ParseProtocol(s string) Protocol {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "udp":
		return ProtocolUDP
	case "tcp":
		return ProtocolTCP
	default:
		return ProtocolAuto
	}
}
