package wv

import (
	"bytes"
	"encoding/binary"
	"testing"

	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

func makePSSHBox(t *testing.T, systemID []byte, data []byte) []byte {
	t.Helper()
	size := 4 + 4 + 4 + 16 + 4 + len(data)
	box := make([]byte, 0, size)
	box = binary.BigEndian.AppendUint32(box, uint32(size))
	box = append(box, "pssh"...)
	box = append(box, 0, 0, 0, 0) // version 0, no flags
	box = append(box, systemID...)
	box = binary.BigEndian.AppendUint32(box, uint32(len(data)))
	box = append(box, data...)
	return box
}

func testPSSH(t *testing.T) *PSSH {
	t.Helper()
	data := (&wvpb.WidevinePsshData{
		KeyIDs:    [][]byte{bytes.Repeat([]byte{0x11}, 16)},
		Provider:  "testprovider",
		ContentID: []byte("test-content"),
	}).Marshal()
	pssh, err := NewPSSH(makePSSHBox(t, WidevineSystemID, data))
	if err != nil {
		t.Fatalf("NewPSSH: %v", err)
	}
	return pssh
}

func TestNewPSSH(t *testing.T) {
	pssh := testPSSH(t)
	if pssh.Version() != 0 {
		t.Fatalf("version %d", pssh.Version())
	}
	if pssh.Data().Provider != "testprovider" {
		t.Fatalf("provider %q", pssh.Data().Provider)
	}
	if len(pssh.Data().KeyIDs) != 1 {
		t.Fatalf("key id count %d", len(pssh.Data().KeyIDs))
	}
	if len(pssh.RawData()) == 0 {
		t.Fatal("raw data empty")
	}
}

func TestNewPSSHRejectsForeignSystemID(t *testing.T) {
	playready := []byte{0x9a, 0x04, 0xf0, 0x79, 0x98, 0x40, 0x42, 0x86, 0xab, 0x92, 0xe6, 0x5b, 0xe0, 0x88, 0x5f, 0x95}
	data := (&wvpb.WidevinePsshData{Provider: "x"}).Marshal()
	if _, err := NewPSSH(makePSSHBox(t, playready, data)); err == nil {
		t.Fatal("accepted a non-widevine system id")
	}
}

func TestNewPSSHRejectsNonPsshBox(t *testing.T) {
	box := []byte{0, 0, 0, 8, 'f', 'r', 'e', 'e'}
	if _, err := NewPSSH(box); err == nil {
		t.Fatal("accepted a non-pssh box")
	}
	if _, err := NewPSSH([]byte{1, 2}); err == nil {
		t.Fatal("accepted truncated bytes")
	}
}
