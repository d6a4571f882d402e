package sdpedit

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

// H264Params selects the H.264 variant kept when forcing H.264.
type H264Params struct {
	PacketizationMode string
	ProfileLevelID    string
}

var DefaultH264 = H264Params{PacketizationMode: "1", ProfileLevelID: "42e01f"}

// ForceResult lists the payload types left in each forced media kind.
type ForceResult struct {
	Audio []string
	Video []string
}

// ForcePayloads keeps exactly one payload type per audio and video section matching the
// given encoding names. An empty name leaves that kind alone, as does a section without a match.
func ForcePayloads(raw, audio, video string, h264 H264Params) (string, ForceResult, error) {
	var res ForceResult
	sd, err := parse(raw)
	if err != nil {
		return raw, res, fmt.Errorf("parse description: %w", err)
	}
	for _, md := range sd.MediaDescriptions {
		switch md.MediaName.Media {
		case "audio":
			if pt, ok := forceSection(md, audio, h264); ok {
				res.Audio = append(res.Audio, pt)
			}
		case "video":
			if pt, ok := forceSection(md, video, h264); ok {
				res.Video = append(res.Video, pt)
			}
		}
	}
	out, err := marshal(sd)
	if err != nil {
		return raw, res, fmt.Errorf("marshal description: %w", err)
	}
	return out, res, nil
}

func forceSection(md *sdp.MediaDescription, codec string, h264 H264Params) (string, bool) {
	if codec == "" {
		return "", false
	}
	ps := payloads(md)
	idx := pickPayload(ps, codec, h264)
	if idx < 0 {
		return "", false
	}
	chosen := ps[idx]

	if strings.EqualFold(codec, "H264") {
		params := chosen.fmtp
		if pm, _ := params.get("packetization-mode"); pm != h264.PacketizationMode {
			params = params.set("packetization-mode", h264.PacketizationMode)
		}
		if _, ok := params.get("profile-level-id"); !ok {
			params = params.set("profile-level-id", h264.ProfileLevelID)
		}
		if params.String() != chosen.fmtp.String() {
			setFmtp(md, chosen.pt, params)
		}
	}

	md.MediaName.Formats = []string{chosen.pt}
	attrs := md.Attributes[:0:0]
	for _, a := range md.Attributes {
		switch a.Key {
		case attrRtpmap, attrFmtp, attrRtcpFb:
			if pt, _ := payloadAttr(a.Value); pt != chosen.pt && pt != "*" {
				continue
			}
		}
		attrs = append(attrs, a)
	}
	md.Attributes = attrs
	return chosen.pt, true
}

func pickPayload(ps []payload, codec string, h264 H264Params) int {
	best, bestScore := -1, 0
	for i, p := range ps {
		if !strings.EqualFold(p.encoding, codec) {
			continue
		}
		score := 1
		if strings.EqualFold(codec, "H264") {
			if pm, _ := p.fmtp.get("packetization-mode"); pm == h264.PacketizationMode {
				score++
				if prof, _ := p.fmtp.get("profile-level-id"); strings.EqualFold(prof, h264.ProfileLevelID) {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
