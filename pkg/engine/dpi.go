package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

const metersPerInch = 0.0254

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jfifID       = []byte{'J', 'F', 'I', 'F', 0}

	errNotJPEG = errors.New("not a JPEG stream")
	errNotPNG  = errors.New("not a PNG stream")
)

// SetDPI writes dpi into the density metadata of an encoded image. JPEG gets
// a JFIF APP0 density, PNG a pHYs chunk. Formats without a density field
// are returned unchanged.
func SetDPI(data []byte, format string, dpi int) ([]byte, error) {
	if dpi <= 0 || dpi > math.MaxUint16 {
		return nil, fmt.Errorf("invalid dpi %d", dpi)
	}
	switch format {
	case "jpeg", "jpg":
		return setJPEGDPI(data, dpi)
	case "png":
		return setPNGDPI(data, dpi)
	}
	return data, nil
}

// DPIOf reads the density written by SetDPI. ok is false when the image
// carries no density in inch or meter units.
func DPIOf(data []byte, format string) (dpi int, ok bool) {
	switch format {
	case "jpeg", "jpg":
		return jpegDPI(data)
	case "png":
		return pngDPI(data)
	}
	return 0, false
}

// findJFIF returns the offset of the JFIF APP0 marker, or -1. Only the
// header segments before the first SOS are scanned.
func findJFIF(data []byte) int {
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return -1
		}
		marker := data[i+1]
		if marker == 0xDA { // start of scan
			return -1
		}
		length := int(binary.BigEndian.Uint16(data[i+2:]))
		if marker == 0xE0 && length >= 16 && i+2+length <= len(data) &&
			bytes.Equal(data[i+4:i+9], jfifID) {
			return i
		}
		i += 2 + length
	}
	return -1
}

func setJPEGDPI(data []byte, dpi int) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNotJPEG
	}

	out := bytes.Clone(data)
	if i := findJFIF(out); i >= 0 {
		out[i+11] = 1 // dots per inch
		binary.BigEndian.PutUint16(out[i+12:], uint16(dpi))
		binary.BigEndian.PutUint16(out[i+14:], uint16(dpi))
		return out, nil
	}

	app0 := []byte{
		0xFF, 0xE0, 0x00, 0x10,
		'J', 'F', 'I', 'F', 0,
		1, 1, // version 1.1
		1, // dots per inch
		0, 0, 0, 0,
		0, 0, // no thumbnail
	}
	binary.BigEndian.PutUint16(app0[12:], uint16(dpi))
	binary.BigEndian.PutUint16(app0[14:], uint16(dpi))

	res := make([]byte, 0, len(out)+len(app0))
	res = append(res, out[:2]...)
	res = append(res, app0...)
	return append(res, out[2:]...), nil
}

func jpegDPI(data []byte) (int, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, false
	}
	i := findJFIF(data)
	if i < 0 {
		return 0, false
	}
	x := int(binary.BigEndian.Uint16(data[i+12:]))
	switch data[i+11] {
	case 1:
		return x, true
	case 2: // dots per cm
		return int(math.Round(float64(x) * 2.54)), true
	}
	return 0, false
}

func physChunk(dpi int) []byte {
	ppm := uint32(math.Round(float64(dpi) / metersPerInch))

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:], 9)
	copy(chunk[4:], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:], ppm)
	binary.BigEndian.PutUint32(chunk[12:], ppm)
	chunk[16] = 1 // meter
	binary.BigEndian.PutUint32(chunk[17:], crc32.ChecksumIEEE(chunk[4:17]))
	return chunk
}

// setPNGDPI drops any existing pHYs chunk and inserts a new one before the
// first IDAT, where the format requires it.
func setPNGDPI(data []byte, dpi int) ([]byte, error) {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return nil, errNotPNG
	}

	phys := physChunk(dpi)
	out := make([]byte, 0, len(data)+len(phys))
	out = append(out, pngSignature...)

	inserted := false
	for i := len(pngSignature); i < len(data); {
		if i+12 > len(data) {
			return nil, fmt.Errorf("truncated PNG chunk at offset %d", i)
		}
		length := int(binary.BigEndian.Uint32(data[i:]))
		end := i + 12 + length
		if length < 0 || end > len(data) {
			return nil, fmt.Errorf("truncated PNG chunk at offset %d", i)
		}
		switch string(data[i+4 : i+8]) {
		case "pHYs":
		case "IDAT", "IEND":
			if !inserted {
				out = append(out, phys...)
				inserted = true
			}
			out = append(out, data[i:end]...)
		default:
			out = append(out, data[i:end]...)
		}
		i = end
	}
	if !inserted {
		return nil, errors.New("PNG stream has no image data")
	}
	return out, nil
}

func pngDPI(data []byte) (int, bool) {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return 0, false
	}
	for i := len(pngSignature); i+12 <= len(data); {
		length := int(binary.BigEndian.Uint32(data[i:]))
		if string(data[i+4:i+8]) == "pHYs" && length == 9 && i+17 <= len(data) {
			if data[i+16] != 1 {
				return 0, false
			}
			ppm := binary.BigEndian.Uint32(data[i+8:])
			return int(math.Round(float64(ppm) * metersPerInch)), true
		}
		i += 12 + length
	}
	return 0, false
}
