package sdpedit

import (
	"strings"
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mediaSection(t *testing.T, raw, kind string) *sdp.MediaDescription {
	t.Helper()
	sd, err := parse(raw)
	require.NoError(t, err)
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media == kind {
			return md
		}
	}
	t.Fatalf("no %s section", kind)
	return nil
}

func TestForcePayloadsH264PrefersPacketizationMode1(t *testing.T) {
	out, res, err := ForcePayloads(sampleOffer, "opus", "H264", DefaultH264)
	require.NoError(t, err)
	assert.Equal(t, []string{"104"}, res.Video)
	assert.Equal(t, []string{"111"}, res.Audio)

	video := mediaSection(t, out, "video")
	assert.Equal(t, []string{"104"}, video.MediaName.Formats)
	audio := mediaSection(t, out, "audio")
	assert.Equal(t, []string{"111"}, audio.MediaName.Formats)

	assert.NotContains(t, out, "VP8/90000")
	assert.NotContains(t, out, "G722")
	assert.NotContains(t, out, "apt=")
	assert.Contains(t, out, "a=rtcp-fb:104 nack pli")
	assert.Contains(t, out, "a=fmtp:104 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f")
}

func TestForcePayloadsIsIdempotent(t *testing.T) {
	for _, codec := range []string{"H264", "VP8", "VP9"} {
		once, _, err := ForcePayloads(sampleOffer, "opus", codec, DefaultH264)
		require.NoError(t, err)
		twice, res, err := ForcePayloads(once, "opus", codec, DefaultH264)
		require.NoError(t, err)
		assert.Equal(t, once, twice, codec)
		assert.Len(t, res.Video, 1, codec)
	}
}

func TestForcePayloadsInjectsH264Params(t *testing.T) {
	out, res, err := ForcePayloads(bareH264Offer, "", "H264", DefaultH264)
	require.NoError(t, err)
	assert.Equal(t, []string{"105"}, res.Video)
	assert.Contains(t, out, "a=fmtp:105 packetization-mode=1;profile-level-id=42e01f")
	assert.NotContains(t, out, "rtx")
}

func TestForcePayloadsLeavesUnmatchedSectionAlone(t *testing.T) {
	out, res, err := ForcePayloads(sampleOffer, "opus", "AV1", DefaultH264)
	require.NoError(t, err)
	assert.Empty(t, res.Video)
	video := mediaSection(t, out, "video")
	assert.Len(t, video.MediaName.Formats, 8)
	assert.Contains(t, out, "a=rtpmap:96 VP8/90000")
}

func TestForcePayloadsRejectsGarbage(t *testing.T) {
	_, _, err := ForcePayloads("not a session description", "opus", "VP8", DefaultH264)
	require.Error(t, err)
}

func TestClampVideoBitrateSingleAttributePerPayload(t *testing.T) {
	forced, _, err := ForcePayloads(sampleOffer, "opus", "VP8", DefaultH264)
	require.NoError(t, err)

	out, err := ClampVideoBitrate(forced, 2500, 4000)
	require.NoError(t, err)
	out, err = ClampVideoBitrate(out, 2500, 4000)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "x-google-max-bitrate="))
	assert.Equal(t, 1, strings.Count(out, "x-google-min-bitrate="))
	assert.Contains(t, out, "a=fmtp:96 x-google-max-bitrate=2500;x-google-min-bitrate=2500")
	assert.Equal(t, 1, strings.Count(out, "b=AS:"))

	video := mediaSection(t, out, "video")
	require.Len(t, video.Bandwidth, 1)
	assert.Equal(t, uint64(2500), video.Bandwidth[0].Bandwidth)
}

func TestClampVideoBitrateSkipsRetransmissionPayloads(t *testing.T) {
	out, err := ClampVideoBitrate(sampleOffer, 1500, 0)
	require.NoError(t, err)
	// VP8, VP9 and three H264 payloads; rtx is untouched.
	assert.Equal(t, 5, strings.Count(out, "x-google-max-bitrate=1500"))
	assert.NotContains(t, out, "x-google-min-bitrate")
	assert.Contains(t, out, "a=fmtp:97 apt=96\r\n")
}

func TestClampVideoBitrateDisabled(t *testing.T) {
	out, err := ClampVideoBitrate(sampleOffer, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, sampleOffer, out)
}

func TestApplyAudioStereo(t *testing.T) {
	out, err := ApplyAudio(sampleOffer, true, 128)
	require.NoError(t, err)
	assert.Contains(t, out, "a=fmtp:111 minptime=10;useinbandfec=1;stereo=1;sprop-stereo=1;maxaveragebitrate=128000")
	audio := mediaSection(t, out, "audio")
	require.Len(t, audio.Bandwidth, 1)
	assert.Equal(t, uint64(128), audio.Bandwidth[0].Bandwidth)

	again, err := ApplyAudio(out, true, 128)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestApplyAudioMonoOnlyCapsBitrate(t *testing.T) {
	out, err := ApplyAudio(sampleOffer, false, 64)
	require.NoError(t, err)
	assert.NotContains(t, out, "stereo=1")
	assert.Contains(t, out, "maxaveragebitrate=64000")
}
