// Package aismsg builds and parses the simulator's AIS-like frames: types
// 1/2/3 (position reports) and 5 (static/voyage data), including the
// SOTDMA/ITDMA communication-state sub-fields and the CRC-16 trailer.
package aismsg

import (
	"errors"
	"fmt"

	"aisnet/bitcodec"
	"aisnet/crc16"
)

const (
	rampUpBits   = "11111111"
	syncSequence = "010101010101010101010101"
	startFlag    = "01111110"
	endFlag      = "01111110"
	bufferBits   = "11111111111111111111111"
)

// Sentinel error kinds, checked with errors.Is at the listener boundary.
var (
	ErrUnknownMessageType = errors.New("aismsg: unknown message type")
	ErrCorruptedMessage   = errors.New("aismsg: corrupted message (CRC mismatch)")
)

// fieldKind distinguishes plain integer fields from six-bit-alphabet text
// fields in the declarative content tables below.
type fieldKind int

const (
	kindInt fieldKind = iota
	kindStr
)

// field describes one payload field: its name, encoding kind, and bit width.
// msg123Content/msg5Content are the declarative field sequences the builder
// and parser both walk, so the two sides can never disagree on layout.
type field struct {
	name  string
	kind  fieldKind
	width int
}

var msg123Content = []field{
	{"mmsi", kindInt, 30},
	{"navigational_status", kindInt, 4},
	{"rate_of_turn", kindInt, 8},
	{"speed_over_ground", kindInt, 10},
	{"position_accuracy", kindInt, 1},
	{"longitude", kindInt, 28},
	{"latitude", kindInt, 27},
	{"course_over_ground", kindInt, 12},
	{"true_heading", kindInt, 9},
	{"time_stamp", kindInt, 6},
	{"special_maneuvre_indicator", kindInt, 2},
	{"spare", kindInt, 3},
	{"raim_flag", kindInt, 1},
}

var msg5Content = []field{
	{"mmsi", kindInt, 30},
	{"ais_version", kindInt, 2},
	{"imo_number", kindInt, 30},
	{"call_sign", kindStr, 42},
	{"name", kindStr, 120},
	{"type_of_ship_and_cargo_type", kindInt, 8},
	{"A", kindInt, 9},
	{"B", kindInt, 9},
	{"C", kindInt, 6},
	{"D", kindInt, 6},
	{"type_of_epf_device", kindInt, 4},
	{"eta_minute", kindInt, 6},
	{"eta_hour", kindInt, 5},
	{"eta_day", kindInt, 5},
	{"eta_month", kindInt, 4},
	{"maximum_present_static_draught", kindInt, 8},
	{"destination", kindStr, 120},
	{"dte", kindInt, 1},
	{"spare", kindInt, 1},
}

// FieldSource supplies a value for a named field, either as an integer or
// as six-bit-alphabet text. It decouples the codec from any particular
// boat/state representation — the station package adapts its own typed
// boat fields to this interface when building frames.
type FieldSource interface {
	IntField(name string) uint64
	StrField(name string) string
}

// Fields is the decoded, type-erased view of a parsed frame. Callers pull
// out named fields with the Int/Str accessors; which fields are present
// depends on the message type, as filled in by Parse.
type Fields map[string]interface{}

func (f Fields) Int(name string) uint64 {
	v, _ := f[name].(uint64)
	return v
}

func (f Fields) Str(name string) string {
	v, _ := f[name].(string)
	return v
}

// Type returns the message type field (bits 40..46 of the full frame).
func Type(fullFrame string) (uint64, error) {
	if len(fullFrame) < 46 {
		return 0, fmt.Errorf("aismsg: frame too short to contain a type field")
	}
	return bitcodec.BitsToInt(fullFrame[40:46])
}

// buildSubMessage implements the SOTDMA sub-message selection by timeout
// value: {3,5,7}->received_stations, {2,4,6}->slot_number, 1->utc hour:minute,
// 0->slot_offset.
func buildSubMessage(timeout int8, offset, recvStations, slotNumber uint64, utcHour, utcMinute uint64) (string, error) {
	switch timeout {
	case 3, 5, 7:
		return bitcodec.IntToBits(recvStations, 14)
	case 2, 4, 6:
		return bitcodec.IntToBits(slotNumber, 14)
	case 1:
		hourBits, err := bitcodec.IntToBits(utcHour, 5)
		if err != nil {
			return "", err
		}
		minuteBits, err := bitcodec.IntToBits(utcMinute, 6)
		if err != nil {
			return "", err
		}
		return bitcodec.PadLeft(hourBits+minuteBits, 14), nil
	case 0:
		return bitcodec.IntToBits(offset, 14)
	default:
		return "", fmt.Errorf("aismsg: slot_timeout %d out of range 0..7", timeout)
	}
}

// CommState carries the inputs needed to build the communication-state
// suffix for types 1/2/3. For 1/2 exactly one of Offset/RecvStations/
// SlotNumber/(UTCHour,UTCMinute) is meaningful, selected by SlotTimeout.
type CommState struct {
	SyncState    uint64
	SlotTimeout  int8 // types 1/2
	Offset       uint64
	RecvStations uint64
	SlotNumber   uint64
	UTCHour      uint64
	UTCMinute    uint64

	// type 3 (ITDMA)
	SlotIncrement uint64
	NumberOfSlots uint64
	KeepFlag      bool
}

func buildCommunicationState(msgType int, cs CommState) (string, error) {
	syncBits, err := bitcodec.IntToBits(cs.SyncState, 2)
	if err != nil {
		return "", err
	}
	switch msgType {
	case 1, 2:
		timeoutBits, err := bitcodec.IntToBits(uint64(cs.SlotTimeout), 3)
		if err != nil {
			return "", err
		}
		sub, err := buildSubMessage(cs.SlotTimeout, cs.Offset, cs.RecvStations, cs.SlotNumber, cs.UTCHour, cs.UTCMinute)
		if err != nil {
			return "", err
		}
		return syncBits + timeoutBits + sub, nil
	case 3:
		incBits, err := bitcodec.IntToBits(cs.SlotIncrement, 13)
		if err != nil {
			return "", err
		}
		slotsBits, err := bitcodec.IntToBits(cs.NumberOfSlots, 3)
		if err != nil {
			return "", err
		}
		keep := uint64(0)
		if cs.KeepFlag {
			keep = 1
		}
		keepBits, err := bitcodec.IntToBits(keep, 1)
		if err != nil {
			return "", err
		}
		return syncBits + incBits + slotsBits + keepBits, nil
	default:
		return syncBits, nil
	}
}

// BuildPayload serialises the message-type-specific payload (no
// preamble/CRC/trailer) from src, appending the communication-state suffix
// for types 1/2/3.
func BuildPayload(msgType int, src FieldSource, cs CommState) (string, error) {
	typeBits, err := bitcodec.IntToBits(uint64(msgType), 6)
	if err != nil {
		return "", err
	}
	repeatBits, err := bitcodec.IntToBits(3, 2)
	if err != nil {
		return "", err
	}
	payload := typeBits + repeatBits

	content := contentTable(msgType)
	if content == nil {
		return "", fmt.Errorf("%w: %d", ErrUnknownMessageType, msgType)
	}

	for _, f := range content {
		var bits string
		var err error
		switch f.kind {
		case kindInt:
			bits, err = bitcodec.IntToBits(src.IntField(f.name), f.width)
		case kindStr:
			bits, err = bitcodec.StrToBits(src.StrField(f.name), f.width)
		}
		if err != nil {
			return "", fmt.Errorf("aismsg: field %q: %w", f.name, err)
		}
		payload += bits
	}

	if msgType == 1 || msgType == 2 || msgType == 3 {
		commState, err := buildCommunicationState(msgType, cs)
		if err != nil {
			return "", err
		}
		payload += commState
	}
	return payload, nil
}

// Build returns the full on-wire frame: preamble, payload, CRC-16, trailer.
func Build(msgType int, src FieldSource, cs CommState) (string, error) {
	payload, err := BuildPayload(msgType, src, cs)
	if err != nil {
		return "", err
	}
	crc, err := crc16.Compute(payload)
	if err != nil {
		return "", err
	}
	return rampUpBits + syncSequence + startFlag + payload + crc + endFlag + bufferBits, nil
}

func contentTable(msgType int) []field {
	switch msgType {
	case 1, 2, 3:
		return msg123Content
	case 5:
		return msg5Content
	default:
		return nil
	}
}

// Parse decodes a full on-wire frame into Fields. It returns
// ErrUnknownMessageType for types outside {1,2,3,5} and ErrCorruptedMessage
// when the CRC check fails.
func Parse(fullFrame string) (Fields, error) {
	msgType, err := Type(fullFrame)
	if err != nil {
		return nil, err
	}

	var payload, crc string
	var subMessage string
	switch msgType {
	case 1, 2, 3:
		if len(fullFrame) < 224 {
			return nil, fmt.Errorf("%w: frame too short", ErrCorruptedMessage)
		}
		payload = fullFrame[40:208]
		crc = fullFrame[208:224]
		subMessage = payload[154:168]
	case 5:
		if len(fullFrame) < 480 {
			return nil, fmt.Errorf("%w: frame too short", ErrCorruptedMessage)
		}
		payload = fullFrame[40:464]
		crc = fullFrame[464:480]
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, msgType)
	}

	if !crc16.Verify(payload, crc) {
		return nil, ErrCorruptedMessage
	}

	out := Fields{}
	messageID, err := bitcodec.BitsToInt(payload[0:6])
	if err != nil {
		return nil, err
	}
	repeatIndicator, err := bitcodec.BitsToInt(payload[6:8])
	if err != nil {
		return nil, err
	}
	out["message_id"] = messageID
	out["repeat_indicator"] = repeatIndicator

	content := contentTable(int(msgType))
	startI := 8
	for _, f := range content {
		raw := payload[startI : startI+f.width]
		switch f.kind {
		case kindInt:
			v, err := bitcodec.BitsToInt(raw)
			if err != nil {
				return nil, err
			}
			out[f.name] = v
		case kindStr:
			v, err := bitcodec.BitsToStr(raw)
			if err != nil {
				return nil, err
			}
			out[f.name] = v
		}
		startI += f.width
	}

	switch msgType {
	case 1, 2:
		syncState, err := bitcodec.BitsToInt(payload[149:151])
		if err != nil {
			return nil, err
		}
		slotTimeout, err := bitcodec.BitsToInt(payload[151:154])
		if err != nil {
			return nil, err
		}
		out["sync_state"] = syncState
		out["slot_timeout"] = slotTimeout

		switch slotTimeout {
		case 0:
			v, err := bitcodec.BitsToInt(subMessage)
			if err != nil {
				return nil, err
			}
			out["slot_offset"] = v
		case 1:
			// The 14-bit sub-message is "000" || hour(5) || minute(6):
			// hour/minute only occupy 11 bits, left-padded to 14 by
			// buildSubMessage/PadLeft.
			hour, err := bitcodec.BitsToInt(subMessage[3:8])
			if err != nil {
				return nil, err
			}
			minute, err := bitcodec.BitsToInt(subMessage[8:14])
			if err != nil {
				return nil, err
			}
			out["utc_hour"] = hour
			out["utc_minute"] = minute
		case 2, 4, 6:
			v, err := bitcodec.BitsToInt(subMessage)
			if err != nil {
				return nil, err
			}
			out["slot_number"] = v
		case 3, 5, 7:
			v, err := bitcodec.BitsToInt(subMessage)
			if err != nil {
				return nil, err
			}
			out["received_stations"] = v
		}
	case 3:
		syncState, err := bitcodec.BitsToInt(payload[149:151])
		if err != nil {
			return nil, err
		}
		slotIncrement, err := bitcodec.BitsToInt(payload[151:164])
		if err != nil {
			return nil, err
		}
		numberOfSlots, err := bitcodec.BitsToInt(payload[164:167])
		if err != nil {
			return nil, err
		}
		keepFlag, err := bitcodec.BitsToInt(payload[167:168])
		if err != nil {
			return nil, err
		}
		out["sync_state"] = syncState
		out["slot_increment"] = slotIncrement
		out["number_of_slots"] = numberOfSlots
		out["keep_flag"] = keepFlag
	}

	return out, nil
}
