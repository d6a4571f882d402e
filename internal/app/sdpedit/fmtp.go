package sdpedit

import (
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

const (
	attrRtpmap = "rtpmap"
	attrFmtp   = "fmtp"
	attrRtcpFb = "rtcp-fb"
)

// fmtpParams is an ordered key=value list from an a=fmtp line.
type fmtpParams []fmtpParam

type fmtpParam struct {
	key, value string
	bare       bool
}

func parseFmtpParams(s string) fmtpParams {
	var out fmtpParams
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		out = append(out, fmtpParam{key: strings.TrimSpace(k), value: strings.TrimSpace(v), bare: !ok})
	}
	return out
}

func (p fmtpParams) get(key string) (string, bool) {
	for _, kv := range p {
		if strings.EqualFold(kv.key, key) {
			return kv.value, true
		}
	}
	return "", false
}

// set replaces every occurrence of key with a single one, keeping the first position.
func (p fmtpParams) set(key, value string) fmtpParams {
	out := make(fmtpParams, 0, len(p)+1)
	found := false
	for _, kv := range p {
		if strings.EqualFold(kv.key, key) {
			if found {
				continue
			}
			found = true
			out = append(out, fmtpParam{key: kv.key, value: value})
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, fmtpParam{key: key, value: value})
	}
	return out
}

func (p fmtpParams) del(key string) fmtpParams {
	out := p[:0:0]
	for _, kv := range p {
		if !strings.EqualFold(kv.key, key) {
			out = append(out, kv)
		}
	}
	return out
}

func (p fmtpParams) String() string {
	parts := make([]string, 0, len(p))
	for _, kv := range p {
		if kv.bare {
			parts = append(parts, kv.key)
			continue
		}
		parts = append(parts, kv.key+"="+kv.value)
	}
	return strings.Join(parts, ";")
}

// payloadAttr splits "96 VP8/90000" into its payload type and remainder.
func payloadAttr(value string) (pt, rest string) {
	pt, rest, _ = strings.Cut(strings.TrimSpace(value), " ")
	return pt, strings.TrimSpace(rest)
}

// encodingName returns the codec name from an rtpmap remainder like "VP8/90000".
func encodingName(rtpmap string) string {
	name, _, _ := strings.Cut(rtpmap, "/")
	return name
}

type payload struct {
	pt       string
	encoding string
	fmtp     fmtpParams
}

// payloads lists the section's formats in preference order with their rtpmap and fmtp.
func payloads(md *sdp.MediaDescription) []payload {
	byPT := make(map[string]*payload, len(md.MediaName.Formats))
	out := make([]payload, 0, len(md.MediaName.Formats))
	for _, f := range md.MediaName.Formats {
		byPT[f] = &payload{pt: f}
	}
	for _, a := range md.Attributes {
		switch a.Key {
		case attrRtpmap:
			pt, rest := payloadAttr(a.Value)
			if p, ok := byPT[pt]; ok {
				p.encoding = encodingName(rest)
			}
		case attrFmtp:
			pt, rest := payloadAttr(a.Value)
			if p, ok := byPT[pt]; ok {
				p.fmtp = parseFmtpParams(rest)
			}
		}
	}
	for _, f := range md.MediaName.Formats {
		out = append(out, *byPT[f])
	}
	return out
}

// setFmtp writes params for pt, adding an a=fmtp line right after its rtpmap when missing.
func setFmtp(md *sdp.MediaDescription, pt string, params fmtpParams) {
	line := pt + " " + params.String()
	for i, a := range md.Attributes {
		if a.Key != attrFmtp {
			continue
		}
		if p, _ := payloadAttr(a.Value); p == pt {
			md.Attributes[i].Value = line
			return
		}
	}
	at := len(md.Attributes)
	for i, a := range md.Attributes {
		if a.Key != attrRtpmap {
			continue
		}
		if p, _ := payloadAttr(a.Value); p == pt {
			at = i + 1
			break
		}
	}
	attrs := make([]sdp.Attribute, 0, len(md.Attributes)+1)
	attrs = append(attrs, md.Attributes[:at]...)
	attrs = append(attrs, sdp.NewAttribute(attrFmtp, line))
	attrs = append(attrs, md.Attributes[at:]...)
	md.Attributes = attrs
}

// setBandwidthAS replaces any b=AS line of the section.
func setBandwidthAS(md *sdp.MediaDescription, kbps int) {
	bw := make([]sdp.Bandwidth, 0, len(md.Bandwidth)+1)
	for _, b := range md.Bandwidth {
		if b.Type != "AS" {
			bw = append(bw, b)
		}
	}
	md.Bandwidth = append(bw, sdp.Bandwidth{Type: "AS", Bandwidth: uint64(kbps)})
}

func itoa(v int) string { return strconv.Itoa(v) }

func parse(raw string) (*sdp.SessionDescription, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		return nil, err
	}
	return &sd, nil
}

func marshal(sd *sdp.SessionDescription) (string, error) {
	b, err := sd.Marshal()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
