package vhd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestFooterSize(t *testing.T) {
	if size := binary.Size(Footer{}); size != FooterSize {
		t.Fatalf("expected %v, got %v", FooterSize, size)
	}
}

func TestNewFixed(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFixed(64<<20+100, now)
	if err := f.Validate(); err != nil {
		t.Fatal(err)
	}
	if f.Sectors() != 131072 {
		t.Fatalf("expected %v, got %v", 131072, f.Sectors())
	}
	if !f.Created().Equal(now) {
		t.Fatalf("expected %v, got %v", now, f.Created())
	}
	if f.Checksum != f.ComputeChecksum() {
		t.Fatal("checksum mismatch")
	}

	b, err := f.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != FooterSize || !bytes.Equal(b[:8], []byte("conectix")) {
		t.Fatalf("unexpected encoding %x", b[:16])
	}
	if got := binary.BigEndian.Uint32(b[60:]); got != TypeFixed {
		t.Fatalf("type at wrong offset: %v", got)
	}
	if got := binary.BigEndian.Uint64(b[40:]); got != 64<<20 {
		t.Fatalf("disk size at wrong offset: %v", got)
	}
}

func TestGeometry(t *testing.T) {
	tests := map[string]struct {
		sectors uint64
		c       uint16
		h, s    uint8
	}{
		"small": {2048, 30, 4, 17},
		"64MiB": {131072, 963, 8, 17},
		"1GiB":  {2097152, 2080, 16, 63},
		"max":   {65535 * 16 * 255 * 2, 65535, 16, 255},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c, h, s := geometry(tc.sectors)
			if c != tc.c || h != tc.h || s != tc.s {
				t.Fatalf("expected %v/%v/%v, got %v/%v/%v", tc.c, tc.h, tc.s, c, h, s)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		modify func(*Footer)
		err    error
	}{
		"valid":   {func(*Footer) {}, nil},
		"cookie":  {func(f *Footer) { f.Cookie[0] = 'x' }, ErrCookie},
		"dynamic": {func(f *Footer) { f.Type = TypeDynamic }, ErrType},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := NewFixed(1<<20, time.Now())
			tc.modify(f)
			if err := f.Validate(); !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestCopy(t *testing.T) {
	f := NewFixed(4*SectorSize, time.Now())
	footer, _ := f.MarshalBinary()
	data := bytes.Repeat([]byte{0xa5, 0x5a}, 2*SectorSize)
	img := append(append([]byte{}, data...), footer...)

	var dst bytes.Buffer
	got, err := Copy(&dst, bytes.NewReader(img), make([]byte, 128*SectorSize))
	if err != nil {
		t.Fatal(err)
	}
	if *got != *f {
		t.Fatal("footer mismatch")
	}
	if !bytes.Equal(dst.Bytes(), data) {
		t.Fatal("data mismatch")
	}

	if _, err := ReadFooter(bytes.NewReader(make([]byte, 100))); err == nil {
		t.Fatal("expected error for short image")
	}
}
