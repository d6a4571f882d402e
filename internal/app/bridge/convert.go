package bridge

import (
	"errors"
	"fmt"

	"github.com/dkeye/Publisher/internal/core"
)

// PixelFormat is the layout of a captured video frame.
type PixelFormat int

const (
	PixelFormatI420 PixelFormat = iota // Y, U, V planes
	PixelFormatNV12                    // Y plane + interleaved UV
	PixelFormatRGB24
	PixelFormatRGBA
	PixelFormatBGRA
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatBGRA:
		return "BGRA"
	default:
		return "Unknown"
	}
}

func (p PixelFormat) planeCount() int {
	switch p {
	case PixelFormatI420:
		return 3
	case PixelFormatNV12:
		return 2
	case PixelFormatRGB24, PixelFormatRGBA, PixelFormatBGRA:
		return 1
	default:
		return 0
	}
}

// VideoSample is one captured frame as the host hands it over.
// It is not retained past SubmitVideo.
type VideoSample struct {
	Planes      [][]byte
	Strides     []int
	Width       int
	Height      int
	Format      PixelFormat
	TimestampNs int64
}

var (
	ErrBadDimensions = errors.New("bad frame dimensions")
	ErrShortPlane    = errors.New("plane shorter than stride x height")
	ErrUnknownFormat = errors.New("unknown pixel format")
)

// converter turns samples into I420, reusing its buffer between frames.
type converter struct {
	buf []byte
}

func chromaSize(w, h int) (int, int) { return (w + 1) / 2, (h + 1) / 2 }

func checkPlane(plane []byte, stride, rowBytes, rows int) error {
	if stride < rowBytes {
		return fmt.Errorf("%w: stride %d < row %d", ErrShortPlane, stride, rowBytes)
	}
	if len(plane) < stride*(rows-1)+rowBytes {
		return ErrShortPlane
	}
	return nil
}

func (c *converter) toI420(s VideoSample) (core.VideoFrame, error) {
	w, h := s.Width, s.Height
	if w <= 0 || h <= 0 {
		return core.VideoFrame{}, ErrBadDimensions
	}
	n := s.Format.planeCount()
	if n == 0 {
		return core.VideoFrame{}, ErrUnknownFormat
	}
	if len(s.Planes) < n || len(s.Strides) < n {
		return core.VideoFrame{}, fmt.Errorf("%w: %s wants %d planes", ErrShortPlane, s.Format, n)
	}
	cw, ch := chromaSize(w, h)

	switch s.Format {
	case PixelFormatI420:
		if err := checkPlane(s.Planes[0], s.Strides[0], w, h); err != nil {
			return core.VideoFrame{}, err
		}
		for i := 1; i < 3; i++ {
			if err := checkPlane(s.Planes[i], s.Strides[i], cw, ch); err != nil {
				return core.VideoFrame{}, err
			}
		}
		return core.VideoFrame{
			Width: w, Height: h,
			Y: s.Planes[0], U: s.Planes[1], V: s.Planes[2],
			StrideY: s.Strides[0], StrideU: s.Strides[1], StrideV: s.Strides[2],
		}, nil
	case PixelFormatNV12:
		if err := checkPlane(s.Planes[0], s.Strides[0], w, h); err != nil {
			return core.VideoFrame{}, err
		}
		if err := checkPlane(s.Planes[1], s.Strides[1], cw*2, ch); err != nil {
			return core.VideoFrame{}, err
		}
		u, v := c.chroma(cw * ch)
		uv, stride := s.Planes[1], s.Strides[1]
		for y := 0; y < ch; y++ {
			row := uv[y*stride:]
			for x := 0; x < cw; x++ {
				u[y*cw+x] = row[2*x]
				v[y*cw+x] = row[2*x+1]
			}
		}
		return core.VideoFrame{
			Width: w, Height: h,
			Y: s.Planes[0], U: u, V: v,
			StrideY: s.Strides[0], StrideU: cw, StrideV: cw,
		}, nil
	}

	bpp, ri, gi, bi := 4, 0, 1, 2
	switch s.Format {
	case PixelFormatRGB24:
		bpp = 3
	case PixelFormatBGRA:
		ri, bi = 2, 0
	}
	if err := checkPlane(s.Planes[0], s.Strides[0], w*bpp, h); err != nil {
		return core.VideoFrame{}, err
	}
	yPlane, u, v := c.planes(w*h, cw*ch)
	src, stride := s.Planes[0], s.Strides[0]
	for y := 0; y < h; y++ {
		row := src[y*stride:]
		for x := 0; x < w; x++ {
			p := row[x*bpp:]
			yPlane[y*w+x] = lumaBT601(p[ri], p[gi], p[bi])
		}
	}
	for cy := 0; cy < ch; cy++ {
		for cx := 0; cx < cw; cx++ {
			var r, g, b, cnt int
			for dy := 0; dy < 2 && 2*cy+dy < h; dy++ {
				row := src[(2*cy+dy)*stride:]
				for dx := 0; dx < 2 && 2*cx+dx < w; dx++ {
					p := row[(2*cx+dx)*bpp:]
					r += int(p[ri])
					g += int(p[gi])
					b += int(p[bi])
					cnt++
				}
			}
			u[cy*cw+cx], v[cy*cw+cx] = chromaBT601(r/cnt, g/cnt, b/cnt)
		}
	}
	return core.VideoFrame{
		Width: w, Height: h,
		Y: yPlane, U: u, V: v,
		StrideY: w, StrideU: cw, StrideV: cw,
	}, nil
}

func (c *converter) grow(n int) []byte {
	if cap(c.buf) < n {
		c.buf = make([]byte, n)
	}
	return c.buf[:n]
}

func (c *converter) chroma(n int) (u, v []byte) {
	b := c.grow(2 * n)
	return b[:n:n], b[n:]
}

func (c *converter) planes(ySize, cSize int) (y, u, v []byte) {
	b := c.grow(ySize + 2*cSize)
	return b[:ySize:ySize], b[ySize : ySize+cSize : ySize+cSize], b[ySize+cSize:]
}

// BT.601 studio swing, integer form.
func lumaBT601(r, g, b uint8) uint8 {
	return uint8(((66*int(r) + 129*int(g) + 25*int(b) + 128) >> 8) + 16)
}

func chromaBT601(r, g, b int) (uint8, uint8) {
	u := ((-38*r - 74*g + 112*b + 128) >> 8) + 128
	v := ((112*r - 94*g - 18*b + 128) >> 8) + 128
	return uint8(u), uint8(v)
}
