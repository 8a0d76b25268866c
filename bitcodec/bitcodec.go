// Package bitcodec implements the project's bit-level wire encoding: plain
// integers packed into fixed-width big-endian bitstrings, and a 6-bit
// alphabet used for free-text fields (call sign, name, destination).
//
// The codec deliberately represents bits as ASCII '0'/'1' characters rather
// than packed binary, matching the transport convention used throughout the
// rest of the simulator: frames travel over the wire as literal '0'/'1' text.
package bitcodec

import (
	"fmt"
	"strconv"
	"strings"
)

// sixBitAlphabet is the project's simplified character set, index 0..63.
const sixBitAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789+/"

// IntToBits renders n as an unsigned big-endian bitstring, left-padded with
// zeros to width bits. It returns an error if n does not fit in width bits.
func IntToBits(n uint64, width int) (string, error) {
	if width > 0 && width < 64 && n >= uint64(1)<<uint(width) {
		return "", fmt.Errorf("bitcodec: value %d does not fit in %d bits", n, width)
	}
	s := strconv.FormatUint(n, 2)
	if len(s) > width {
		return "", fmt.Errorf("bitcodec: value %d does not fit in %d bits", n, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}

// MustIntToBits is IntToBits for callers building literal, known-good fields
// where a width mismatch indicates a programmer error.
func MustIntToBits(n uint64, width int) string {
	bits, err := IntToBits(n, width)
	if err != nil {
		panic(err)
	}
	return bits
}

// BitsToInt parses a big-endian '0'/'1' bitstring into an unsigned integer.
func BitsToInt(bits string) (uint64, error) {
	if bits == "" {
		return 0, nil
	}
	return strconv.ParseUint(bits, 2, 64)
}

// PadLeft left-pads bits with '0' up to targetSize characters.
func PadLeft(bits string, targetSize int) string {
	if len(bits) >= targetSize {
		return bits
	}
	return strings.Repeat("0", targetSize-len(bits)) + bits
}

// index6 returns the 0..63 ordinal of a six-bit alphabet character.
func index6(c byte) (int, error) {
	i := strings.IndexByte(sixBitAlphabet, c)
	if i < 0 {
		return 0, fmt.Errorf("bitcodec: %q is not in the six-bit alphabet", c)
	}
	return i, nil
}

// char6 returns the six-bit alphabet character for ordinal ord (0..63).
func char6(ord int) (byte, error) {
	if ord < 0 || ord >= len(sixBitAlphabet) {
		return 0, fmt.Errorf("bitcodec: ordinal %d out of range", ord)
	}
	return sixBitAlphabet[ord], nil
}

// StrToBits encodes s (characters drawn from the six-bit alphabet) as a
// concatenation of 6-bit groups, then left-pads the result to width bits
// when width > 0.
func StrToBits(s string, width int) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ord, err := index6(s[i])
		if err != nil {
			return "", err
		}
		b.WriteString(MustIntToBits(uint64(ord), 6))
	}
	if width <= 0 {
		return b.String(), nil
	}
	return PadLeft(b.String(), width), nil
}

// BitsToStr decodes a bitstring of 6-bit groups back into six-bit alphabet
// text. Leading all-zero groups are dropped first, matching the padding
// convention used by StrToBits/the wire format. Since 'a' encodes as
// 000000, leading 'a' characters are dropped along with the padding.
func BitsToStr(bits string) (string, error) {
	for len(bits) >= 6 && bits[0:6] == "000000" {
		bits = bits[6:]
	}
	var out strings.Builder
	for len(bits) > 0 {
		end := 6
		if end > len(bits) {
			end = len(bits)
		}
		group := PadLeft(bits[:end], 6)
		bits = bits[end:]
		n, err := BitsToInt(group)
		if err != nil {
			return "", err
		}
		c, err := char6(int(n))
		if err != nil {
			return "", err
		}
		out.WriteByte(c)
	}
	return out.String(), nil
}

// Encode returns the ASCII transport encoding of a '0'/'1' bitstring: the
// bitstring itself, as bytes. This is the project's deliberate choice of
// literal-text framing over packed binary.
func Encode(bits string) []byte {
	return []byte(bits)
}

// Decode parses the ASCII transport encoding back into a bitstring,
// trimming surrounding whitespace the way a line-oriented transport would.
func Decode(raw []byte) string {
	return strings.TrimSpace(string(raw))
}
