package camera

import "bytes"

const (
	// MaxBufferBytes caps the bytes held while searching for a frame. When exceeded, only the tail is kept.
	MaxBufferBytes = 300000

	// MinJPEGBytes is the size below which a JPEG is assumed to be truncated or corrupt
	MinJPEGBytes = 5000
)

var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

// FrameSplitter extracts JPEG images from an MJPEG byte stream, by scanning for the
// JPEG start-of-image and end-of-image markers. Multipart boundaries and headers
// between images are ignored.
type FrameSplitter struct {
	buf     []byte
	Dropped int64 // Number of frames discarded for being too small
}

// Push appends a chunk of the stream, and returns all complete frames found.
// Returned frames do not alias the internal buffer.
func (s *FrameSplitter) Push(chunk []byte) [][]byte {
	s.buf = append(s.buf, chunk...)
	if len(s.buf) > MaxBufferBytes {
		s.buf = append(s.buf[:0], s.buf[len(s.buf)-MaxBufferBytes:]...)
	}

	var frames [][]byte
	for {
		start := bytes.Index(s.buf, jpegSOI)
		if start == -1 {
			// Keep a trailing 0xff, in case it is the first half of a marker
			if n := len(s.buf); n != 0 && s.buf[n-1] == 0xff {
				s.buf = append(s.buf[:0], 0xff)
			} else {
				s.buf = s.buf[:0]
			}
			break
		}
		if start != 0 {
			s.buf = append(s.buf[:0], s.buf[start:]...)
		}
		end := bytes.Index(s.buf[len(jpegSOI):], jpegEOI)
		if end == -1 {
			break
		}
		n := len(jpegSOI) + end + len(jpegEOI)
		if n >= MinJPEGBytes {
			frames = append(frames, bytes.Clone(s.buf[:n]))
		} else {
			s.Dropped++
		}
		s.buf = append(s.buf[:0], s.buf[n:]...)
	}
	return frames
}

// Reset discards any partial frame
func (s *FrameSplitter) Reset() {
	s.buf = s.buf[:0]
}
