package hio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestFeedFixed(t *testing.T) {
	s := &UnpackSetting{Mode: UnpackFixed, FixedLength: 4}
	s.normalize()

	var st unpackState
	records, residue, err := st.feed(s, []byte("abcdefg"))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(records) != 1 || string(records[0]) != "abcd" {
		t.Fatalf("got records %q", records)
	}
	if string(residue) != "efg" {
		t.Fatalf("got residue %q, want %q", residue, "efg")
	}
}

func TestFeedDelimiter(t *testing.T) {
	s := &UnpackSetting{Mode: UnpackDelimiter, Delimiter: []byte("\r\n")}
	s.normalize()

	var st unpackState
	records, residue, err := st.feed(s, []byte("one\r\ntwo\r\nthr"))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(records) != 2 || string(records[0]) != "one\r\n" || string(records[1]) != "two\r\n" {
		t.Fatalf("got records %q", records)
	}
	if string(residue) != "thr" {
		t.Fatalf("got residue %q, want %q", residue, "thr")
	}
}

func TestFeedLengthFieldBigEndianUnsigned(t *testing.T) {
	s := &UnpackSetting{
		Mode:              UnpackLengthField,
		LengthFieldBytes:  2,
		LengthFieldCoding: BigEndian | Unsigned,
		BodyOffset:        2,
	}
	s.normalize()

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(3))
	buf.WriteString("abc")
	binary.Write(&buf, binary.BigEndian, uint16(2))
	buf.WriteString("xy")
	buf.WriteByte('Z') // incomplete next header

	var st unpackState
	records, residue, err := st.feed(s, buf.Bytes())
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if string(records[0][s.BodyOffset:]) != "abc" || string(records[1][s.BodyOffset:]) != "xy" {
		t.Fatalf("got records %q", records)
	}
	if len(residue) != 1 {
		t.Fatalf("got residue %q, want 1 leftover byte", residue)
	}
}

func TestFeedLengthFieldLittleEndianSigned(t *testing.T) {
	s := &UnpackSetting{
		Mode:              UnpackLengthField,
		LengthFieldBytes:  4,
		LengthFieldCoding: LittleEndian | Signed,
		BodyOffset:        4,
	}
	s.normalize()

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(5))
	buf.WriteString("hello")

	var st unpackState
	records, residue, err := st.feed(s, buf.Bytes())
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(records) != 1 || string(records[0][s.BodyOffset:]) != "hello" {
		t.Fatalf("got records %q", records)
	}
	if len(residue) != 0 {
		t.Fatalf("got residue %q, want none", residue)
	}
}

func TestFeedLengthFieldNegativeRejected(t *testing.T) {
	s := &UnpackSetting{
		Mode:              UnpackLengthField,
		LengthFieldBytes:  4,
		LengthFieldCoding: BigEndian | Signed,
		BodyOffset:        4,
	}
	s.normalize()

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int32(-1))

	var st unpackState
	_, _, err := st.feed(s, buf.Bytes())
	if err != ErrBadLength {
		t.Fatalf("got err %v, want ErrBadLength", err)
	}
}

func TestFeedLengthFieldOverMaxRejected(t *testing.T) {
	s := &UnpackSetting{
		Mode:              UnpackLengthField,
		LengthFieldBytes:  4,
		LengthFieldCoding: BigEndian | Unsigned,
		BodyOffset:        4,
		PackageMaxLength:  16,
	}
	s.normalize()

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(1000))

	var st unpackState
	_, _, err := st.feed(s, buf.Bytes())
	if err != ErrPackageTooBig {
		t.Fatalf("got err %v, want ErrPackageTooBig", err)
	}
}

func TestSetUnpackBusyWhileBuffered(t *testing.T) {
	h := &Handle{}
	first := &UnpackSetting{Mode: UnpackFixed, FixedLength: 4}
	if err := h.SetUnpack(first); err != nil {
		t.Fatalf("SetUnpack: %v", err)
	}
	h.rbuf.data = append(h.rbuf.data, 'a', 'b')

	second := &UnpackSetting{Mode: UnpackFixed, FixedLength: 8}
	if err := h.SetUnpack(second); err != ErrUnpackBusy {
		t.Fatalf("got err %v, want ErrUnpackBusy", err)
	}
}

func TestUnsetUnpackKeepsBuffer(t *testing.T) {
	h := &Handle{}
	if err := h.SetUnpack(&UnpackSetting{Mode: UnpackFixed, FixedLength: 4}); err != nil {
		t.Fatalf("SetUnpack: %v", err)
	}
	h.UnsetUnpack()
	if h.unpack != nil {
		t.Fatal("unpack setting still attached")
	}
	if h.rbuf.data == nil {
		t.Fatal("private buffer was discarded, want it kept")
	}
}
