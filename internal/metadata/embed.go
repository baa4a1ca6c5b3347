package metadata

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

var jpegExifHeader = []byte("Exif\x00\x00")

// maxAPP1Payload is the APP1 capacity: segment length is a uint16 that
// counts its own two bytes.
const maxAPP1Payload = 0xFFFF - 2

// InjectJPEG returns data with rawExif embedded as the APP1 segment directly
// after SOI. Any pre-existing Exif APP1 segment is dropped so a re-encoded
// file never carries two blobs.
func InjectJPEG(data []byte, rawExif []byte) ([]byte, error) {
	payload := make([]byte, 0, len(jpegExifHeader)+len(rawExif))
	payload = append(payload, jpegExifHeader...)
	payload = append(payload, rawExif...)
	if len(payload) > maxAPP1Payload {
		return nil, fmt.Errorf("EXIF blob too large for APP1 segment (%d bytes)", len(payload))
	}

	br := bufio.NewReader(bytes.NewReader(data))
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return nil, err
	}
	if soi[0] != 0xff || soi[1] != 0xd8 {
		return nil, fmt.Errorf("invalid JPEG SOI")
	}
	if _, err := bw.Write(soi); err != nil {
		return nil, err
	}

	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(payload)+2))
	if _, err := bw.Write([]byte{0xff, 0xe1}); err != nil {
		return nil, err
	}
	if _, err := bw.Write(lenBuf); err != nil {
		return nil, err
	}
	if _, err := bw.Write(payload); err != nil {
		return nil, err
	}

	for {
		markerPrefix, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		for markerPrefix != 0xff {
			markerPrefix, err = br.ReadByte()
			if err != nil {
				return nil, err
			}
		}

		marker, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		for marker == 0xff {
			marker, err = br.ReadByte()
			if err != nil {
				return nil, err
			}
		}

		if marker == 0xd9 { // EOI
			if _, err := bw.Write([]byte{0xff, 0xd9}); err != nil {
				return nil, err
			}
			break
		}

		if marker == 0xda { // SOS: entropy-coded data follows, copy the rest
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return nil, err
			}
			if _, err := io.Copy(bw, br); err != nil {
				return nil, err
			}
			break
		}

		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return nil, err
			}
			continue
		}

		segLenBuf := make([]byte, 2)
		if _, err := io.ReadFull(br, segLenBuf); err != nil {
			return nil, err
		}
		segLen := int(binary.BigEndian.Uint16(segLenBuf))
		if segLen < 2 {
			return nil, fmt.Errorf("invalid JPEG segment length")
		}
		payloadLen := segLen - 2

		if marker == 0xe1 {
			segPayload := make([]byte, payloadLen)
			if _, err := io.ReadFull(br, segPayload); err != nil {
				return nil, err
			}
			if bytes.HasPrefix(segPayload, jpegExifHeader) {
				continue
			}
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return nil, err
			}
			if _, err := bw.Write(segLenBuf); err != nil {
				return nil, err
			}
			if _, err := bw.Write(segPayload); err != nil {
				return nil, err
			}
			continue
		}

		if _, err := bw.Write([]byte{0xff, marker}); err != nil {
			return nil, err
		}
		if _, err := bw.Write(segLenBuf); err != nil {
			return nil, err
		}
		if _, err := io.CopyN(bw, br, int64(payloadLen)); err != nil {
			return nil, err
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
