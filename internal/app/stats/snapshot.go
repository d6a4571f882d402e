package stats

import (
	"strconv"
	"strings"
	"time"
)

// Snapshot is an immutable view of the session's statistics.
type Snapshot struct {
	TransportBytesSent     uint64 `json:"transport_bytes_sent"`
	TransportBytesReceived uint64 `json:"transport_bytes_received"`

	AudioPacketsSent uint64 `json:"audio_packets_sent"`
	AudioBytesSent   uint64 `json:"audio_bytes_sent"`
	VideoPacketsSent uint64 `json:"video_packets_sent"`
	VideoBytesSent   uint64 `json:"video_bytes_sent"`
	TotalBytesSent   uint64 `json:"total_bytes_sent"`

	PLICount  uint32 `json:"pli_count"`
	FIRCount  uint32 `json:"fir_count"`
	NACKCount uint32 `json:"nack_count"`
	QPSum     uint64 `json:"qp_sum"`

	AudioLevel           float64 `json:"audio_level"`
	TotalAudioEnergy     float64 `json:"total_audio_energy"`
	TotalSamplesDuration float64 `json:"total_samples_duration"`

	FrameWidth     uint32  `json:"frame_width"`
	FrameHeight    uint32  `json:"frame_height"`
	FramesSent     uint32  `json:"frames_sent"`
	HugeFramesSent uint32  `json:"huge_frames_sent"`
	FrameRate      float64 `json:"frame_rate"`

	DataChannelMessagesSent     uint32 `json:"data_channel_messages_sent"`
	DataChannelBytesSent        uint64 `json:"data_channel_bytes_sent"`
	DataChannelMessagesReceived uint32 `json:"data_channel_messages_received"`
	DataChannelBytesReceived    uint64 `json:"data_channel_bytes_received"`

	CollectedAt time.Time `json:"collected_at"`
}

// Lines renders the snapshot as "key:value" lines.
func (s Snapshot) Lines() string {
	var b strings.Builder
	u := func(k string, v uint64) {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(v, 10))
		b.WriteByte('\n')
	}
	f := func(k string, v float64) {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	f("track_audio_level", s.AudioLevel)
	f("track_total_audio_energy", s.TotalAudioEnergy)
	f("track_total_samples_duration", s.TotalSamplesDuration)
	u("track_frame_width", uint64(s.FrameWidth))
	u("track_frame_height", uint64(s.FrameHeight))
	u("track_frames_sent", uint64(s.FramesSent))
	u("track_huge_frames_sent", uint64(s.HugeFramesSent))
	f("track_fps", s.FrameRate)
	u("outbound_audio_packets_sent", s.AudioPacketsSent)
	u("outbound_audio_bytes_sent", s.AudioBytesSent)
	u("outbound_video_packets_sent", s.VideoPacketsSent)
	u("outbound_video_bytes_sent", s.VideoBytesSent)
	u("outbound_video_fir_count", uint64(s.FIRCount))
	u("outbound_video_pli_count", uint64(s.PLICount))
	u("outbound_video_nack_count", uint64(s.NACKCount))
	u("outbound_video_qp_sum", s.QPSum)
	u("transport_bytes_sent", s.TransportBytesSent)
	u("transport_bytes_received", s.TransportBytesReceived)
	u("data_messages_sent", uint64(s.DataChannelMessagesSent))
	u("data_bytes_sent", s.DataChannelBytesSent)
	u("data_messages_received", uint64(s.DataChannelMessagesReceived))
	u("data_bytes_received", s.DataChannelBytesReceived)
	return b.String()
}
