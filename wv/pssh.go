package wv

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"

	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

// WidevineSystemID is the system ID of Widevine.
var WidevineSystemID = []byte{0xed, 0xef, 0x8b, 0xa9, 0x79, 0xd6, 0x4a, 0xce, 0xa3, 0xc8, 0x27, 0xdc, 0xd5, 0x1d, 0x21, 0xed}

// PSSH represents a PSSH box containing Widevine data.
type PSSH struct {
	box  *mp4.PsshBox
	data *wvpb.WidevinePsshData
}

// NewPSSH creates a PSSH from bytes.
func NewPSSH(b []byte) (*PSSH, error) {
	box, err := mp4.DecodeBox(0, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode box: %w", err)
	}

	psshBox, ok := box.(*mp4.PsshBox)
	if !ok {
		return nil, fmt.Errorf("box is a %s instead of a PSSH", box.Type())
	}

	if !bytes.Equal(psshBox.SystemID, WidevineSystemID) {
		return nil, fmt.Errorf("system id is %s instead of widevine", hex.EncodeToString(psshBox.SystemID))
	}

	data := &wvpb.WidevinePsshData{}
	if err = data.Unmarshal(psshBox.Data); err != nil {
		return nil, fmt.Errorf("unmarshal pssh data: %w", err)
	}

	return &PSSH{
		box:  psshBox,
		data: data,
	}, nil
}

// Version returns the version of the PSSH box.
func (p *PSSH) Version() byte {
	return p.box.Version
}

// Flags returns the flags of the PSSH box.
func (p *PSSH) Flags() uint32 {
	return p.box.Flags
}

// RawData returns the data of the PSSH box.
func (p *PSSH) RawData() []byte {
	return p.box.Data
}

// Data returns the parsed data of the PSSH box.
func (p *PSSH) Data() *wvpb.WidevinePsshData {
	return p.data
}
