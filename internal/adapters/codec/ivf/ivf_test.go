package ivf

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Publisher/internal/core"
	"github.com/dkeye/Publisher/internal/domain"
)

// writeIVF builds a minimal IVF file with the given frames.
func writeIVF(t *testing.T, fourcc string, frames ...[]byte) string {
	t.Helper()
	var b bytes.Buffer
	hdr := make([]byte, 32)
	copy(hdr[0:], "DKIF")
	binary.LittleEndian.PutUint16(hdr[4:], 0)
	binary.LittleEndian.PutUint16(hdr[6:], 32)
	copy(hdr[8:], fourcc)
	binary.LittleEndian.PutUint16(hdr[12:], 64)
	binary.LittleEndian.PutUint16(hdr[14:], 48)
	binary.LittleEndian.PutUint32(hdr[16:], 30)
	binary.LittleEndian.PutUint32(hdr[20:], 1)
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(frames)))
	b.Write(hdr)
	for i, f := range frames {
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh[0:], uint32(len(f)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		b.Write(fh)
		b.Write(f)
	}
	path := filepath.Join(t.TempDir(), "clip.ivf")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o600))
	return path
}

func TestSource_LoopsFrames(t *testing.T) {
	path := writeIVF(t, "VP80", []byte{1, 2, 3}, []byte{4, 5})
	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, domain.VideoCodecVP8, src.Codec())

	var got [][]byte
	for i := 0; i < 3; i++ {
		f, err := src.Encode(core.VideoFrame{})
		require.NoError(t, err)
		got = append(got, f)
	}
	assert.Equal(t, [][]byte{{1, 2, 3}, {4, 5}, {1, 2, 3}}, got)
}

func TestFactory_CodecMismatch(t *testing.T) {
	path := writeIVF(t, "VP90", []byte{1})
	_, err := Factory(path)(domain.VideoCodecVP8, 64, 48, 1000)
	assert.ErrorIs(t, err, ErrCodecMismatch)

	enc, err := Factory(path)(domain.VideoCodecVP9, 64, 48, 1000)
	require.NoError(t, err)
	assert.NoError(t, enc.Close())
}

func TestOpen_UnknownFourCC(t *testing.T) {
	path := writeIVF(t, "XXXX", []byte{1})
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrCodecMismatch)
}
