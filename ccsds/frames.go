package ccsds

import (
	"fmt"
	"io"
	"os"
)

// VCDULength ...
const VCDULength = 1115

// PrimaryHeaderFixedLength ...
const PrimaryHeaderFixedLength int = 6

// FrameErrorControlFieldLength ...
const FrameErrorControlFieldLength int = 0

// VCDUHeaderLength ...
const VCDUHeaderLength int = PrimaryHeaderFixedLength + FrameErrorControlFieldLength

// MPDUStart ...
const MPDUStart int = VCDUHeaderLength + 2

// VCDUTrailerLength ...
const VCDUTrailerLength int = 6

// VCDUDataLength ...
const VCDUDataLength int = VCDULength - VCDUHeaderLength - VCDUTrailerLength

// MPDUPacketZoneLength ...
const MPDUPacketZoneLength int = VCDUDataLength - 2

// FirstHeaderPointerOverflow ...
const FirstHeaderPointerOverflow int = 0x7FF

// MPDUEnd ...
const MPDUEnd int = MPDUStart + MPDUPacketZoneLength

// A Frame is a byte slice
type Frame []byte

// FrameCount returns the virtual channel frame count (wraps at 2^24)
func (frame Frame) FrameCount() int {
	return (int(frame[2]) << 16) | (int(frame[3]) << 8) | int(frame[4])
}

// VirtualChannel returns the virtual channel number [0-63]
func (frame Frame) VirtualChannel() int {
	return int(0x3F & frame[1])
}

// FirstHeaderPointer returns the offset of first packet within the transfer frame data field.
// Assumes there is no Frame Header Error Control field
func (frame Frame) FirstHeaderPointer() int {
	return (int(0x7&frame[VCDUHeaderLength]) << 8) + int(frame[VCDUHeaderLength+1])
}

// SpacecraftID returns the spacecraft id field (8 bits)
func (frame Frame) SpacecraftID() int {
	return (int(0x3F&frame[0]) << 2) | (int(0xC0&frame[1]) >> 6)
}

// FrameFile is a binary file containing a sequence of fixed-length VCDU
// transfer frames, each carrying zero or more CCSDS space packets in its
// MPDU packet zone.
type FrameFile struct {
	Filename string
}

// Iterate reads a frame file, extracts the CCSDS packets carried in each
// frame's MPDU packet zone and passes each complete packet to a callback.
// A packet that spans a frame boundary is reassembled using the next
// frame's FirstHeaderPointer.
func (source FrameFile) Iterate(callback func(p *Packet)) error {
	file, err := os.Open(source.Filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var carry []byte // bytes of a packet still in progress from a prior frame

	frame := make(Frame, VCDULength)
	for {
		_, err := io.ReadFull(file, frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: filename=%s", err.Error(), source.Filename)
		}

		zone := frame[MPDUStart:MPDUEnd]
		fhp := frame.FirstHeaderPointer()

		if fhp == FirstHeaderPointerOverflow {
			// no packet starts in this frame; the whole zone continues carry
			if len(carry) > 0 {
				carry = append(carry, zone...)
			}
			continue
		}

		if len(carry) > 0 && fhp > 0 {
			carry = append(carry, zone[:fhp]...)
			if len(carry) >= 6 {
				pkt := Packet(carry)
				if len(carry) >= pkt.Length()+7 {
					callback(&pkt)
				}
			}
		}
		carry = nil

		offset := fhp
		for offset+6 <= len(zone) {
			pkt := Packet(zone[offset:])
			total := pkt.Length() + 7
			if offset+total > len(zone) {
				carry = append([]byte{}, zone[offset:]...)
				break
			}
			complete := Packet(append([]byte{}, zone[offset:offset+total]...))
			callback(&complete)
			offset += total
		}
		if carry == nil && offset < len(zone) {
			// a packet header split across the frame boundary
			carry = append([]byte{}, zone[offset:]...)
		}
	}
	return nil
}
