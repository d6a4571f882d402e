package rtc

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"

	"github.com/dkeye/Publisher/internal/core"
)

const (
	defaultFrameDuration = 33 * time.Millisecond
	hugeFrameFactor      = 2.5
	avgWeight            = 0.9
	audioFrameDuration   = 20 * time.Millisecond
)

var (
	ErrEngineClosed = errors.New("engine closed")
	ErrSampleRate   = errors.New("unsupported audio sample rate")
)

// layer is one simulcast encoding; scale 1 is full resolution.
type layer struct {
	rid   string
	scale int
	track *webrtc.TrackLocalStaticSample
	enc   VideoEncoder
	w, h  int
}

type videoSink struct {
	e      *Engine
	log    zerolog.Logger
	layers []*layer

	mu         sync.Mutex
	lastTs     int64
	haveTs     bool
	scaled     []byte
	avgSize    float64
	frames     uint32
	hugeFrames uint32
	width      uint32
	height     uint32
	qpSum      uint64
}

func (v *videoSink) WriteVideo(f core.VideoFrame) error {
	if v.e.closed.Load() {
		return ErrEngineClosed
	}
	if f.Width <= 0 || f.Height <= 0 {
		return errors.New("empty frame")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	dur := defaultFrameDuration
	if v.haveTs && f.TimestampUs > v.lastTs {
		dur = time.Duration(f.TimestampUs-v.lastTs) * time.Microsecond
	}
	v.lastTs, v.haveTs = f.TimestampUs, true

	wrote := false
	for _, l := range v.layers {
		if f.Width/l.scale == 0 || f.Height/l.scale == 0 {
			continue
		}
		if err := v.ensureEncoder(l, f.Width, f.Height); err != nil {
			return err
		}
		in := f
		if l.scale > 1 {
			in = v.downscale(f, l.scale)
		}
		data, err := l.enc.Encode(in)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		if err := l.track.WriteSample(media.Sample{Data: data, Duration: dur}); err != nil {
			return err
		}
		wrote = true
		if l.scale == 1 {
			v.account(l, in, len(data))
		}
	}
	if !wrote {
		v.log.Trace().Uint64("frame_id", f.ID).Msg("frame buffered by encoder")
	}
	return nil
}

func (v *videoSink) ensureEncoder(l *layer, width, height int) error {
	w, h := width/l.scale, height/l.scale
	if l.enc != nil && l.w == w && l.h == h {
		return nil
	}
	if l.enc != nil {
		_ = l.enc.Close()
		l.enc = nil
	}
	if v.e.videoEncoders == nil {
		return ErrNoEncoder
	}
	enc, err := v.e.videoEncoders(v.e.cfg.VideoCodec, w, h, v.e.cfg.VideoBitrateKbps/l.scale)
	if err != nil {
		return err
	}
	l.enc, l.w, l.h = enc, w, h
	v.log.Debug().Str("rid", l.rid).Int("width", w).Int("height", h).Msg("video encoder ready")
	return nil
}

func (v *videoSink) account(l *layer, f core.VideoFrame, size int) {
	v.frames++
	v.width, v.height = uint32(f.Width), uint32(f.Height)
	if v.avgSize > 0 && float64(size) > hugeFrameFactor*v.avgSize {
		v.hugeFrames++
	}
	if v.avgSize == 0 {
		v.avgSize = float64(size)
	} else {
		v.avgSize = avgWeight*v.avgSize + (1-avgWeight)*float64(size)
	}
	if qp, ok := l.enc.(QPReporter); ok {
		v.qpSum += uint64(qp.LastQP())
	}
}

// downscale decimates an I420 frame by an integer factor.
func (v *videoSink) downscale(f core.VideoFrame, scale int) core.VideoFrame {
	w, h := f.Width/scale, f.Height/scale
	cw, ch := (w+1)/2, (h+1)/2
	need := w*h + 2*cw*ch
	if cap(v.scaled) < need {
		v.scaled = make([]byte, need)
	}
	buf := v.scaled[:need]
	y, u, vv := buf[:w*h], buf[w*h:w*h+cw*ch], buf[w*h+cw*ch:]
	for row := 0; row < h; row++ {
		src := f.Y[row*scale*f.StrideY:]
		for col := 0; col < w; col++ {
			y[row*w+col] = src[col*scale]
		}
	}
	for row := 0; row < ch; row++ {
		su := f.U[min(row*scale, (f.Height+1)/2-1)*f.StrideU:]
		sv := f.V[min(row*scale, (f.Height+1)/2-1)*f.StrideV:]
		for col := 0; col < cw; col++ {
			x := min(col*scale, (f.Width+1)/2-1)
			u[row*cw+col] = su[x]
			vv[row*cw+col] = sv[x]
		}
	}
	return core.VideoFrame{
		ID: f.ID, Width: w, Height: h,
		Y: y, U: u, V: vv,
		StrideY: w, StrideU: cw, StrideV: cw,
		TimestampUs: f.TimestampUs,
	}
}

func (v *videoSink) requestKeyframe() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, l := range v.layers {
		if l.enc != nil {
			l.enc.RequestKeyframe()
		}
	}
}

func (v *videoSink) fill(r *core.SenderReport) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r.FramesSent = v.frames
	r.HugeFramesSent = v.hugeFrames
	r.FrameWidth, r.FrameHeight = v.width, v.height
	r.QPSum = v.qpSum
}

func (v *videoSink) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, l := range v.layers {
		if l.enc != nil {
			_ = l.enc.Close()
			l.enc = nil
		}
	}
}

type audioSink struct {
	e     *Engine
	log   zerolog.Logger
	track *webrtc.TrackLocalStaticSample

	mu       sync.Mutex
	key      encoderKey
	encoder  AudioEncoder
	pending  []int16
	level    float64
	energy   float64
	duration float64
}

type encoderKey struct {
	rate, channels int
}

func (a *audioSink) WriteAudio(s core.AudioSample) error {
	if a.e.closed.Load() {
		return ErrEngineClosed
	}
	if s.Channels <= 0 || len(s.Data) < s.Frames*s.Channels*2 {
		return errors.New("short audio sample")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureEncoder(s.SampleRate, s.Channels); err != nil {
		return err
	}
	n := s.Frames * s.Channels
	for i := 0; i < n; i++ {
		a.pending = append(a.pending, int16(binary.LittleEndian.Uint16(s.Data[i*2:])))
	}

	chunk := a.encoder.FrameSize() * s.Channels
	for len(a.pending) >= chunk {
		frame := a.pending[:chunk]
		data, err := a.encoder.Encode(frame)
		if err != nil {
			a.pending = a.pending[chunk:]
			return err
		}
		a.measure(frame)
		a.pending = append(a.pending[:0], a.pending[chunk:]...)
		if len(data) == 0 {
			continue
		}
		if err := a.track.WriteSample(media.Sample{Data: data, Duration: audioFrameDuration}); err != nil {
			return err
		}
	}
	return nil
}

func (a *audioSink) ensureEncoder(rate, channels int) error {
	key := encoderKey{rate, channels}
	if a.encoder != nil && a.key == key {
		return nil
	}
	if rate != 48000 {
		return ErrSampleRate
	}
	if a.encoder != nil {
		_ = a.encoder.Close()
		a.encoder = nil
	}
	if a.e.audioEncoders == nil {
		return ErrNoEncoder
	}
	enc, err := a.e.audioEncoders(a.e.cfg.AudioCodec, rate, channels, a.e.cfg.AudioBitrateKbps)
	if err != nil {
		return err
	}
	a.encoder, a.key = enc, key
	a.pending = a.pending[:0]
	a.log.Debug().Int("rate", rate).Int("channels", channels).Msg("audio encoder ready")
	return nil
}

// measure updates the audio level and energy the way RTCAudioSourceStats defines them.
func (a *audioSink) measure(frame []int16) {
	var sum float64
	for _, s := range frame {
		x := float64(s) / 32768
		sum += x * x
	}
	level := math.Sqrt(sum / float64(len(frame)))
	d := audioFrameDuration.Seconds()
	a.level = level
	a.energy += level * level * d
	a.duration += d
}

func (a *audioSink) fill(r *core.SenderReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r.AudioLevel = a.level
	r.TotalAudioEnergy = a.energy
	r.TotalSamplesDuration = a.duration
}

func (a *audioSink) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.encoder != nil {
		_ = a.encoder.Close()
		a.encoder = nil
	}
}
