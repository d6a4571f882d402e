package sdpedit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/Publisher/internal/domain"
)

const (
	udpCandidate = "candidate:1 1 udp 2122260223 192.168.1.2 54321 typ host"
	tcpCandidate = "candidate:2 1 tcp 1518280447 192.168.1.2 9 typ host tcptype active"
)

func TestAllowCandidateProtocolFilter(t *testing.T) {
	assert.False(t, AllowCandidate(udpCandidate, domain.ProtocolTCP))
	assert.True(t, AllowCandidate(tcpCandidate, domain.ProtocolTCP))

	assert.True(t, AllowCandidate(udpCandidate, domain.ProtocolUDP))
	assert.False(t, AllowCandidate(tcpCandidate, domain.ProtocolUDP))

	assert.True(t, AllowCandidate(udpCandidate, domain.ProtocolAuto))
	assert.True(t, AllowCandidate("garbage", domain.ProtocolAuto))
	assert.False(t, AllowCandidate("garbage", domain.ProtocolTCP))
}

func TestAllowCandidateWithoutPrefix(t *testing.T) {
	assert.True(t, AllowCandidate("a=candidate:2 1 TCP 1518280447 10.0.0.1 9 typ host tcptype active", domain.ProtocolTCP))
}

func TestCleanCandidate(t *testing.T) {
	assert.Equal(t, udpCandidate, CleanCandidate(`"`+udpCandidate+`"`))
	assert.Empty(t, CleanCandidate(`""`))
}

func TestSimulcastAllowed(t *testing.T) {
	assert.False(t, SimulcastAllowed(domain.VideoCodecVP9))
	assert.False(t, SimulcastAllowed(domain.VideoCodecAuto))
	assert.True(t, SimulcastAllowed(domain.VideoCodecVP8))
	assert.Equal(t, domain.H264Available, SimulcastAllowed(domain.VideoCodecH264))
}

func TestResolveVideoCodec(t *testing.T) {
	if domain.H264Available {
		assert.Equal(t, domain.VideoCodecH264, ResolveVideoCodec(domain.VideoCodecAuto))
	} else {
		assert.Equal(t, domain.VideoCodecVP9, ResolveVideoCodec(domain.VideoCodecAuto))
	}
	assert.Equal(t, domain.VideoCodecAV1, ResolveVideoCodec(domain.VideoCodecAV1))
}
