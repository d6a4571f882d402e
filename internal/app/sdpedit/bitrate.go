package sdpedit

import (
	"fmt"
	"strings"
)

const (
	paramMaxBitrate = "x-google-max-bitrate"
	paramMinBitrate = "x-google-min-bitrate"
)

// ClampVideoBitrate puts one b=AS line on each video section and exactly one
// max (and, when minKbps > 0, min) bitrate parameter on each video payload.
// minKbps is clamped to maxKbps. A non-positive maxKbps leaves the description unchanged.
func ClampVideoBitrate(raw string, maxKbps, minKbps int) (string, error) {
	if maxKbps <= 0 {
		return raw, nil
	}
	if minKbps > maxKbps {
		minKbps = maxKbps
	}
	sd, err := parse(raw)
	if err != nil {
		return raw, fmt.Errorf("parse description: %w", err)
	}
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "video" {
			continue
		}
		setBandwidthAS(md, maxKbps)
		for _, p := range payloads(md) {
			if !isMediaCodec(p.encoding) {
				continue
			}
			params := p.fmtp.set(paramMaxBitrate, itoa(maxKbps))
			if minKbps > 0 {
				params = params.set(paramMinBitrate, itoa(minKbps))
			} else {
				params = params.del(paramMinBitrate)
			}
			setFmtp(md, p.pt, params)
		}
	}
	return marshal(sd)
}

// isMediaCodec excludes retransmission and redundancy payloads.
func isMediaCodec(encoding string) bool {
	switch strings.ToLower(encoding) {
	case "", "rtx", "red", "ulpfec", "flexfec-03":
		return false
	}
	return true
}
