package core

// VideoFrame is an I420 frame stamped in the engine clock.
// The planes are only valid for the duration of WriteVideo.
type VideoFrame struct {
	ID          uint64
	Width       int
	Height      int
	Y, U, V     []byte
	StrideY     int
	StrideU     int
	StrideV     int
	TimestampUs int64
}

// AudioSample is interleaved signed 16-bit little endian PCM.
type AudioSample struct {
	Data        []byte
	Frames      int
	Channels    int
	SampleRate  int
	TimestampUs int64
}
