// Package metadata reads, adjusts, and re-embeds EXIF metadata. Every
// operation here is best-effort: absence or failure degrades the result
// instead of failing a conversion.
package metadata

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"imgcrunch/pkg/imgutil"
)

const (
	tagPixelXDimension = "PixelXDimension"
	tagPixelYDimension = "PixelYDimension"
)

// Extract returns the raw EXIF blob (TIFF structure first) for path, or nil
// when the file carries none or reading fails. For most containers a
// signature search over the file finds the embedded blob; PNG stores EXIF in
// an eXIf chunk without the signature, so it gets a dedicated chunk walk.
func Extract(path string) []byte {
	if raw, err := exif.SearchFileAndExtractExif(path); err == nil && len(raw) > 0 {
		return raw
	}

	kind, err := imgutil.SniffFile(path)
	if err != nil || kind != imgutil.KindPNG {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	raw, err := readPNGExifChunk(f)
	if err != nil {
		return nil
	}
	return raw
}

// UpdateDimensions rewrites the PixelXDimension/PixelYDimension tags in a raw
// EXIF blob to the post-resize dimensions. Tags that are absent are left
// absent. Returns the (possibly unchanged) blob, whether a rewrite happened,
// and an error only when a rewrite was attempted and failed — the caller
// then keeps the stale blob and marks the result degraded.
func UpdateDimensions(raw []byte, width, height int) ([]byte, bool, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return raw, false, err
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, raw)
	if err != nil {
		return raw, false, err
	}

	exifIfd, err := exif.FindIfdFromRootIfd(index.RootIfd, "IFD/Exif")
	if err != nil {
		// No Exif sub-IFD: nothing carries dimension tags.
		return raw, false, nil
	}

	hasX := ifdHasTag(exifIfd, tagPixelXDimension)
	hasY := ifdHasTag(exifIfd, tagPixelYDimension)
	if !hasX && !hasY {
		return raw, false, nil
	}

	rootIb := exif.NewIfdBuilderFromExistingChain(index.RootIfd)
	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return raw, false, err
	}

	if hasX {
		if err := exifIb.SetStandardWithName(tagPixelXDimension, []uint32{uint32(width)}); err != nil {
			return raw, false, err
		}
	}
	if hasY {
		if err := exifIb.SetStandardWithName(tagPixelYDimension, []uint32{uint32(height)}); err != nil {
			return raw, false, err
		}
	}

	updated, err := exif.NewIfdByteEncoder().EncodeToExif(rootIb)
	if err != nil {
		return raw, false, err
	}
	return updated, true, nil
}

func ifdHasTag(ifd *exif.Ifd, name string) bool {
	entries, err := ifd.FindTagWithName(name)
	return err == nil && len(entries) > 0
}

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// readPNGExifChunk walks PNG chunks and returns the payload of the first
// eXIf chunk, which holds a bare TIFF structure.
func readPNGExifChunk(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		length := binary.BigEndian.Uint32(lenBuf)

		chunkType := make([]byte, 4)
		if _, err := io.ReadFull(br, chunkType); err != nil {
			return nil, err
		}
		chunkName := string(chunkType)

		if chunkName == "eXIf" {
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return nil, err
			}
			return data, nil
		}

		if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
			return nil, err
		}
		if chunkName == "IEND" {
			return nil, errors.New("no eXIf chunk")
		}
	}
}
