// Copyright 2024 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rom

import "encoding/binary"

const (
	checksumStart = 0x1000
	checksumLen   = 1024 * 1024
)

// CIC-NUS-6102 seed, used by most retail games.
const seed6102 uint32 = 0xF8CA4DDC

// Checksum computes the boot checksum of a big-endian ROM image like a
// CIC-NUS-6102 based console. ROMs shorter than the checksummed area are
// padded with 0xff.
func Checksum(data []byte) (crc [2]uint32) {
	buf := make([]byte, checksumLen)
	for i := range buf {
		buf[i] = 0xff
	}
	if len(data) > checksumStart {
		copy(buf, data[checksumStart:])
	}
	return n64CRC(buf, seed6102)
}

// n64CRC is a loose translation to Go of the calculate_crc function from
// the n64chain:
//
// https://github.com/tj90241/n64chain
//
// The original copyright notes from the tools/checksum.c file:
//
// n64chain: A (free) open-source N64 development toolchain.
// Copyright 2014 Tyler J. Stachecki <tstache1@binghamton.edu>
//
// This file is more or less a direct rip of chksum64:
// Copyright 1997 Andreas Sterbenz <stan@sbox.tu-graz.ac.at>
func n64CRC(buf []byte, seed uint32) (crc [2]uint32) {
	t1, t2, t3, t4, t5, t6 := seed, seed, seed, seed, seed, seed

	for i := 0; i+4 <= len(buf); i += 4 {
		c1 := binary.BigEndian.Uint32(buf[i:])
		k1 := t6 + c1
		if k1 < t6 {
			t4++
		}
		t6 = k1
		t3 ^= c1
		k2 := c1 & 0x1F
		k1 = c1<<k2 | c1>>(32-k2)
		t5 += k1
		if c1 < t2 {
			t2 ^= k1
		} else {
			t2 ^= t6 ^ c1
		}
		t1 += c1 ^ t5
	}

	crc[0] = t6 ^ t4 ^ t3
	crc[1] = t5 ^ t2 ^ t1
	return
}
