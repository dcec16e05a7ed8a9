package wire

import (
	"fmt"

	"github.com/ssgo/zonecore/internal/constants"
)

// EncodeSecurityChallenge builds the S2C 0x18 security challenge body
// (spec.md §6 "green seed u32, door seed u32, timestamp u32, key u32").
func EncodeSecurityChallenge(greenSeed, doorSeed, timestamp, key uint32) []byte {
	w := NewWriter(17)
	w.WriteByte(constants.S2CSecurityChallenge).
		WriteUint32(greenSeed).WriteUint32(doorSeed).WriteUint32(timestamp).WriteUint32(key)
	return w.Bytes()
}

// SecurityResponse is the decoded C2S 0x1A security response (spec.md §6).
type SecurityResponse struct {
	WeaponCount      uint32
	SlowFrames       uint32
	FastFrames       uint32
	S2CSlowPackets   uint32
	S2CFastPackets   uint32
	MapChecksum      uint32
	ExeChecksum      uint32
	SettingsChecksum uint32
	PingAvg          uint32
	PingMin          uint32
	PingMax          uint32
	PingSlow         uint32
}

// EncodeDirectoryBeacon builds the directory-publisher UDP beacon
// (spec.md §6 "IP u32 zero, Port u16, Players u16, Scorekeeping u8=1,
// Version u16=134, Name c-string, Password c-string, Description
// c-string").
func EncodeDirectoryBeacon(port, players uint16, name, password, description string) []byte {
	w := NewWriter(16 + len(name) + len(password) + len(description))
	w.WriteUint32(0).
		WriteUint16(port).
		WriteUint16(players).
		WriteByte(1).
		WriteUint16(134).
		WriteCString(name).
		WriteCString(password).
		WriteCString(description)
	return w.Bytes()
}

// EncodeChatMessage builds an S2C 0x07 chat message body of the given
// chat type (constants.ChatTypeArena for the SIGUSR2 operator broadcast),
// with sender player id 0 (core-originated message).
func EncodeChatMessage(chatType byte, text string) []byte {
	w := NewWriter(4 + len(text))
	w.WriteByte(constants.S2CChatMessage).
		WriteByte(chatType).
		WriteInt16(0).
		WriteCString(text)
	return w.Bytes()
}

// LoginRequest is the decoded C2S 0x01 (legacy) / 0x24 (modern) login
// packet body (spec.md §6 "fixed struct with name[32], password[32],
// machine id u32, client version u16, …"). Squad is read opportunistically
// from a trailing fixed field present in both client generations'
// continuation data; a body too short to carry it decodes with an empty
// squad rather than failing, since the Default authenticator treats a
// missing squad the same as an empty one (spec.md §4.6).
type LoginRequest struct {
	Name          string
	Password      string
	MachineID     uint32
	ClientVersion uint16
	Squad         string
}

// DecodeLoginRequest parses a login body (opcode byte already stripped
// by the caller's dispatch table).
func DecodeLoginRequest(body []byte) (LoginRequest, error) {
	r := NewReader(body)
	var req LoginRequest
	var err error

	if req.Name, err = r.FixedString(32); err != nil {
		return LoginRequest{}, fmt.Errorf("wire: decoding login name: %w", err)
	}
	if req.Password, err = r.FixedString(32); err != nil {
		return LoginRequest{}, fmt.Errorf("wire: decoding login password: %w", err)
	}
	if req.MachineID, err = r.Uint32(); err != nil {
		return LoginRequest{}, fmt.Errorf("wire: decoding login machine id: %w", err)
	}
	if req.ClientVersion, err = r.Uint16(); err != nil {
		return LoginRequest{}, fmt.Errorf("wire: decoding login client version: %w", err)
	}
	if r.Len() >= 24 {
		req.Squad, _ = r.FixedString(24)
	}
	return req, nil
}

// LoginResponse is the S2C 0x0A login response (spec.md §6 "code u8,
// server version u32, map checksum u32, code checksum u32, news
// checksum u32, custom-text-rejected bit"). CustomText is only written
// when Code is constants.LoginCustomText.
type LoginResponse struct {
	Code          byte
	ServerVersion uint32
	MapChecksum   uint32
	CodeChecksum  uint32
	NewsChecksum  uint32
	CustomText    string
}

// EncodeLoginResponse builds the S2C 0x0A body.
func EncodeLoginResponse(resp LoginResponse) []byte {
	w := NewWriter(18 + len(resp.CustomText))
	w.WriteByte(constants.S2CLoginResponse).
		WriteByte(resp.Code).
		WriteUint32(resp.ServerVersion).
		WriteUint32(resp.MapChecksum).
		WriteUint32(resp.CodeChecksum).
		WriteUint32(resp.NewsChecksum)
	if resp.Code == constants.LoginCustomText {
		w.WriteCString(resp.CustomText)
	}
	return w.Bytes()
}

// SelectBoxOption is one (value, text) pair offered by an S2C 0x31
// select-box body.
type SelectBoxOption struct {
	Value int16
	Text  string
}

// EncodeSelectBox builds an S2C 0x31 select-box body: a title c-string
// followed by each option's (value i16, text c-string) pair (spec.md §6,
// bounded at 8192 bytes by the caller before sending).
func EncodeSelectBox(title string, options []SelectBoxOption) []byte {
	w := NewWriter(8 + len(title))
	w.WriteByte(constants.S2CSelectBox).WriteCString(title)
	for _, opt := range options {
		w.WriteInt16(opt.Value).WriteCString(opt.Text)
	}
	return w.Bytes()
}

// SelectBoxResponse is the decoded C2S 0x32 body: the chosen value and
// an optional free-text entry (spec.md §6 "value i16 followed by
// optional text").
type SelectBoxResponse struct {
	Value int16
	Text  string
}

// DecodeSelectBoxResponse parses a C2S 0x32 body (opcode byte already
// stripped). A body carrying only the value is valid; Text stays empty.
func DecodeSelectBoxResponse(body []byte) (SelectBoxResponse, error) {
	r := NewReader(body)
	var resp SelectBoxResponse
	var err error
	if resp.Value, err = r.Int16(); err != nil {
		return SelectBoxResponse{}, fmt.Errorf("wire: decoding select-box response value: %w", err)
	}
	if r.Len() > 0 {
		resp.Text, _ = r.CString()
	}
	return resp, nil
}

// DecodeGoArena parses a C2S 0x03 arena-request body: a single
// c-string naming the requested public base arena, empty for "any"
// (spec.md §4.8 arena placement).
func DecodeGoArena(body []byte) (string, error) {
	r := NewReader(body)
	name, err := r.CString()
	if err != nil {
		return "", fmt.Errorf("wire: decoding go-arena request: %w", err)
	}
	return name, nil
}

// DecodeSecurityResponse parses a C2S 0x1A body (opcode byte already
// stripped by the caller's dispatch table).
func DecodeSecurityResponse(body []byte) (SecurityResponse, error) {
	r := NewReader(body)
	var resp SecurityResponse
	fields := []*uint32{
		&resp.WeaponCount, &resp.SlowFrames, &resp.FastFrames, &resp.S2CSlowPackets,
		&resp.S2CFastPackets, &resp.MapChecksum, &resp.ExeChecksum, &resp.SettingsChecksum,
		&resp.PingAvg, &resp.PingMin, &resp.PingMax, &resp.PingSlow,
	}
	for i, f := range fields {
		v, err := r.Uint32()
		if err != nil {
			return SecurityResponse{}, fmt.Errorf("wire: decoding security response field %d: %w", i, err)
		}
		*f = v
	}
	return resp, nil
}
