package sdpedit

import (
	"fmt"
	"strings"
)

// ApplyAudio negotiates stereo on Opus payloads and caps the audio bitrate.
// MultiOpus keeps its channel mapping and only gets the bitrate cap.
func ApplyAudio(raw string, stereo bool, kbps int) (string, error) {
	if !stereo && kbps <= 0 {
		return raw, nil
	}
	sd, err := parse(raw)
	if err != nil {
		return raw, fmt.Errorf("parse description: %w", err)
	}
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		if kbps > 0 {
			setBandwidthAS(md, kbps)
		}
		for _, p := range payloads(md) {
			enc := strings.ToLower(p.encoding)
			if enc != "opus" && enc != "multiopus" {
				continue
			}
			params := p.fmtp
			if stereo && enc == "opus" {
				params = params.set("stereo", "1").set("sprop-stereo", "1")
			}
			if kbps > 0 {
				params = params.set("maxaveragebitrate", itoa(kbps*1000))
			}
			setFmtp(md, p.pt, params)
		}
	}
	return marshal(sd)
}
