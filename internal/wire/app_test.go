package wire

import (
	"testing"

	"github.com/ssgo/zonecore/internal/constants"
)

func TestEncodeSecurityChallenge_FieldOrder(t *testing.T) {
	body := EncodeSecurityChallenge(1, 2, 3, 4)
	r := NewReader(body)
	op, _ := r.Byte()
	if op != constants.S2CSecurityChallenge {
		t.Fatalf("opcode = %#x, want %#x", op, constants.S2CSecurityChallenge)
	}
	green, _ := r.Uint32()
	door, _ := r.Uint32()
	ts, _ := r.Uint32()
	key, _ := r.Uint32()
	if green != 1 || door != 2 || ts != 3 || key != 4 {
		t.Fatalf("fields = %d,%d,%d,%d, want 1,2,3,4", green, door, ts, key)
	}
}

func TestDecodeSecurityResponse_RoundTripsAllFields(t *testing.T) {
	w := NewWriter(48)
	values := []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	for _, v := range values {
		w.WriteUint32(v)
	}
	resp, err := DecodeSecurityResponse(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeSecurityResponse: %v", err)
	}
	if resp.WeaponCount != 1 || resp.SettingsChecksum != 8 || resp.PingSlow != 12 {
		t.Fatalf("resp = %+v, unexpected field mapping", resp)
	}
}

func TestDecodeSecurityResponse_TruncatedBodyErrors(t *testing.T) {
	if _, err := DecodeSecurityResponse([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error decoding truncated security response")
	}
}

func TestEncodeChatMessage_FieldOrder(t *testing.T) {
	body := EncodeChatMessage(constants.ChatTypeArena, "server restarting soon")
	r := NewReader(body)
	op, _ := r.Byte()
	chatType, _ := r.Byte()
	sender, _ := r.Uint16()
	text, _ := r.CString()

	if op != constants.S2CChatMessage || chatType != constants.ChatTypeArena || sender != 0 {
		t.Fatalf("header = %#x,%#x,%d", op, chatType, sender)
	}
	if text != "server restarting soon" {
		t.Fatalf("text = %q", text)
	}
}

func TestDecodeGoArena_ReturnsRequestedName(t *testing.T) {
	w := NewWriter(8)
	w.WriteCString("duel")
	name, err := DecodeGoArena(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeGoArena: %v", err)
	}
	if name != "duel" {
		t.Fatalf("name = %q, want duel", name)
	}
}

func TestDecodeGoArena_EmptyNameMeansAnyArena(t *testing.T) {
	w := NewWriter(1)
	w.WriteCString("")
	name, err := DecodeGoArena(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeGoArena: %v", err)
	}
	if name != "" {
		t.Fatalf("name = %q, want empty", name)
	}
}

func TestDecodeLoginRequest_ParsesFixedFieldsAndOptionalSquad(t *testing.T) {
	w := NewWriter(32 + 32 + 4 + 2 + 24)
	w.WriteFixedString("Alice", 32).
		WriteFixedString("hunter2", 32).
		WriteUint32(0xDEADBEEF).
		WriteUint16(40).
		WriteFixedString("Raiders", 24)

	req, err := DecodeLoginRequest(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeLoginRequest: %v", err)
	}
	if req.Name != "Alice" || req.Password != "hunter2" || req.MachineID != 0xDEADBEEF || req.ClientVersion != 40 {
		t.Fatalf("req = %+v, unexpected fixed fields", req)
	}
	if req.Squad != "Raiders" {
		t.Fatalf("Squad = %q, want Raiders", req.Squad)
	}
}

func TestDecodeLoginRequest_MissingSquadDecodesEmpty(t *testing.T) {
	w := NewWriter(32 + 32 + 4 + 2)
	w.WriteFixedString("Bob", 32).
		WriteFixedString("", 32).
		WriteUint32(1).
		WriteUint16(40)

	req, err := DecodeLoginRequest(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeLoginRequest: %v", err)
	}
	if req.Squad != "" {
		t.Fatalf("Squad = %q, want empty", req.Squad)
	}
}

func TestDecodeLoginRequest_TruncatedBodyErrors(t *testing.T) {
	if _, err := DecodeLoginRequest([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error decoding truncated login request")
	}
}

func TestEncodeLoginResponse_OKHasNoCustomText(t *testing.T) {
	body := EncodeLoginResponse(LoginResponse{Code: constants.LoginOK})
	r := NewReader(body)
	op, _ := r.Byte()
	code, _ := r.Byte()
	if op != constants.S2CLoginResponse || code != constants.LoginOK {
		t.Fatalf("header = %#x,%#x", op, code)
	}
	if r.Len() != 16 {
		t.Fatalf("remaining = %d, want 16 (4 checksum u32 fields, no custom text)", r.Len())
	}
}

func TestEncodeLoginResponse_CustomTextCarriesRejectionMessage(t *testing.T) {
	body := EncodeLoginResponse(LoginResponse{Code: constants.LoginCustomText, CustomText: "temporarily kicked for abuse"})
	r := NewReader(body)
	r.Byte() // opcode
	code, _ := r.Byte()
	r.Uint32()
	r.Uint32()
	r.Uint32()
	r.Uint32()
	text, err := r.CString()
	if err != nil {
		t.Fatalf("reading custom text: %v", err)
	}
	if code != constants.LoginCustomText || text != "temporarily kicked for abuse" {
		t.Fatalf("code=%#x text=%q", code, text)
	}
}

func TestEncodeSelectBox_DecodeSelectBoxResponse_RoundTrip(t *testing.T) {
	body := EncodeSelectBox("Choose a ship", []SelectBoxOption{{Value: 1, Text: "Warbird"}, {Value: 2, Text: "Javelin"}})
	r := NewReader(body)
	op, _ := r.Byte()
	title, _ := r.CString()
	v1, _ := r.Int16()
	t1, _ := r.CString()
	v2, _ := r.Int16()
	t2, _ := r.CString()
	if op != constants.S2CSelectBox || title != "Choose a ship" {
		t.Fatalf("header = %#x,%q", op, title)
	}
	if v1 != 1 || t1 != "Warbird" || v2 != 2 || t2 != "Javelin" {
		t.Fatalf("options = (%d,%q),(%d,%q)", v1, t1, v2, t2)
	}

	resp, err := DecodeSelectBoxResponse(NewWriter(0).WriteInt16(1).WriteCString("Warbird").Bytes())
	if err != nil {
		t.Fatalf("DecodeSelectBoxResponse: %v", err)
	}
	if resp.Value != 1 || resp.Text != "Warbird" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestDecodeSelectBoxResponse_ValueOnlyLeavesTextEmpty(t *testing.T) {
	resp, err := DecodeSelectBoxResponse(NewWriter(0).WriteInt16(7).Bytes())
	if err != nil {
		t.Fatalf("DecodeSelectBoxResponse: %v", err)
	}
	if resp.Value != 7 || resp.Text != "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestEncodeDirectoryBeacon_FieldOrder(t *testing.T) {
	body := EncodeDirectoryBeacon(5000, 7, "Zone", "pw", "desc")
	r := NewReader(body)
	ip, _ := r.Uint32()
	port, _ := r.Uint16()
	players, _ := r.Uint16()
	scorekeeping, _ := r.Byte()
	version, _ := r.Uint16()
	name, _ := r.CString()
	password, _ := r.CString()
	description, _ := r.CString()

	if ip != 0 || port != 5000 || players != 7 || scorekeeping != 1 || version != 134 {
		t.Fatalf("header fields wrong: ip=%d port=%d players=%d sk=%d ver=%d", ip, port, players, scorekeeping, version)
	}
	if name != "Zone" || password != "pw" || description != "desc" {
		t.Fatalf("string fields = %q,%q,%q", name, password, description)
	}
}
