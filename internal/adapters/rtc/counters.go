package rtc

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/dkeye/Publisher/internal/core"
)

type streamCounters struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
	pli     atomic.Uint32
	fir     atomic.Uint32
	nack    atomic.Uint32
}

// feedbackCounters counts outbound RTP and inbound RTCP feedback per media kind.
type feedbackCounters struct {
	audio, video streamCounters

	mu    sync.RWMutex
	kinds map[uint32]core.MediaKind
}

func newFeedbackCounters() *feedbackCounters {
	return &feedbackCounters{kinds: make(map[uint32]core.MediaKind)}
}

func (f *feedbackCounters) of(kind core.MediaKind) *streamCounters {
	if kind == core.KindVideo {
		return &f.video
	}
	return &f.audio
}

func (f *feedbackCounters) kindOf(ssrc uint32) (core.MediaKind, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	k, ok := f.kinds[ssrc]
	return k, ok
}

func (f *feedbackCounters) feedback(pkts []rtcp.Packet) {
	for _, p := range pkts {
		switch pkt := p.(type) {
		case *rtcp.PictureLossIndication:
			if k, ok := f.kindOf(pkt.MediaSSRC); ok {
				f.of(k).pli.Add(1)
			}
		case *rtcp.FullIntraRequest:
			if k, ok := f.kindOf(pkt.MediaSSRC); ok {
				f.of(k).fir.Add(1)
			}
		case *rtcp.TransportLayerNack:
			if k, ok := f.kindOf(pkt.MediaSSRC); ok {
				f.of(k).nack.Add(1)
			}
		}
	}
}

type countingFactory struct {
	counters *feedbackCounters
}

func (f *countingFactory) NewInterceptor(string) (interceptor.Interceptor, error) {
	return &countingInterceptor{counters: f.counters}, nil
}

type countingInterceptor struct {
	interceptor.NoOp
	counters *feedbackCounters
}

func (i *countingInterceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	kind := core.KindAudio
	if strings.HasPrefix(strings.ToLower(info.MimeType), "video/") {
		kind = core.KindVideo
	}
	i.counters.mu.Lock()
	i.counters.kinds[info.SSRC] = kind
	i.counters.mu.Unlock()

	c := i.counters.of(kind)
	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attrs interceptor.Attributes) (int, error) {
		n, err := writer.Write(header, payload, attrs)
		if err == nil {
			c.packets.Add(1)
			c.bytes.Add(uint64(len(payload)))
		}
		return n, err
	})
}

func (i *countingInterceptor) UnbindLocalStream(info *interceptor.StreamInfo) {
	i.counters.mu.Lock()
	delete(i.counters.kinds, info.SSRC)
	i.counters.mu.Unlock()
}

func (i *countingInterceptor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, attrs, err := reader.Read(b, a)
		if err != nil {
			return n, attrs, err
		}
		if pkts, perr := rtcp.Unmarshal(b[:n]); perr == nil {
			i.counters.feedback(pkts)
		}
		return n, attrs, nil
	})
}
