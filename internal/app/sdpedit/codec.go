package sdpedit

import "github.com/dkeye/Publisher/internal/domain"

// ResolveVideoCodec turns the requested codec into the one actually negotiated.
// Auto picks H.264 when this build supports it, VP9 otherwise.
func ResolveVideoCodec(c domain.VideoCodec) domain.VideoCodec {
	switch c {
	case domain.VideoCodecAuto:
		if domain.H264Available {
			return domain.VideoCodecH264
		}
		return domain.VideoCodecVP9
	case domain.VideoCodecH264:
		if !domain.H264Available {
			return domain.VideoCodecVP9
		}
	}
	return c
}

// SimulcastAllowed is false for VP9 and for an unset codec.
func SimulcastAllowed(requested domain.VideoCodec) bool {
	return requested != domain.VideoCodecAuto && ResolveVideoCodec(requested) != domain.VideoCodecVP9
}
