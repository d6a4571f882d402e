package sdpedit

import "strings"

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

var sampleOffer = crlf(
	"v=0",
	"o=- 4215775240449105457 1 IN IP4 0.0.0.0",
	"s=-",
	"t=0 0",
	"a=group:BUNDLE 0 1",
	"a=msid-semantic:WMS *",
	"m=audio 9 UDP/TLS/RTP/SAVPF 111 9",
	"c=IN IP4 0.0.0.0",
	"a=mid:0",
	"a=sendonly",
	"a=rtcp-mux",
	"a=rtpmap:111 opus/48000/2",
	"a=fmtp:111 minptime=10;useinbandfec=1",
	"a=rtcp-fb:111 transport-cc",
	"a=rtpmap:9 G722/8000",
	"m=video 9 UDP/TLS/RTP/SAVPF 96 97 98 99 102 103 104 105",
	"c=IN IP4 0.0.0.0",
	"a=mid:1",
	"a=sendonly",
	"a=rtcp-mux",
	"a=rtpmap:96 VP8/90000",
	"a=rtcp-fb:96 nack",
	"a=rtcp-fb:96 nack pli",
	"a=rtpmap:97 rtx/90000",
	"a=fmtp:97 apt=96",
	"a=rtpmap:98 VP9/90000",
	"a=fmtp:98 profile-id=0",
	"a=rtpmap:99 rtx/90000",
	"a=fmtp:99 apt=98",
	"a=rtpmap:102 H264/90000",
	"a=fmtp:102 level-asymmetry-allowed=1;packetization-mode=0;profile-level-id=42001f",
	"a=rtpmap:103 rtx/90000",
	"a=fmtp:103 apt=102",
	"a=rtpmap:104 H264/90000",
	"a=fmtp:104 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
	"a=rtcp-fb:104 nack pli",
	"a=rtpmap:105 H264/90000",
)

var bareH264Offer = crlf(
	"v=0",
	"o=- 1 1 IN IP4 0.0.0.0",
	"s=-",
	"t=0 0",
	"m=video 9 UDP/TLS/RTP/SAVPF 105 106",
	"c=IN IP4 0.0.0.0",
	"a=mid:0",
	"a=rtpmap:105 H264/90000",
	"a=rtpmap:106 rtx/90000",
	"a=fmtp:106 apt=105",
)
