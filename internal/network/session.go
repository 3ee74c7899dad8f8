package network

import (
	"crypto/aes"
	"errors"
	"fmt"

	"github.com/brocaar/lorawan"
)

var errNotForUs = errors.New("frame not addressed to this device")

// Session is the LoRaWAN 1.0.x OTAA state for one wake cycle. It does no
// I/O and is not safe for concurrent use.
type Session struct {
	creds    Credentials
	devNonce lorawan.DevNonce

	joined  bool
	devAddr lorawan.DevAddr
	nwkSKey lorawan.AES128Key
	appSKey lorawan.AES128Key
	fCntUp  uint32
}

// NewSession creates an unjoined session.
func NewSession(creds Credentials) *Session {
	return &Session{creds: creds}
}

// Joined reports whether a JoinAccept has been accepted.
func (s *Session) Joined() bool {
	return s.joined
}

// DevAddr returns the address assigned by the last JoinAccept.
func (s *Session) DevAddr() lorawan.DevAddr {
	return s.devAddr
}

// JoinRequest builds a signed JoinRequest PHYPayload and resets any
// previous join state.
func (s *Session) JoinRequest(devNonce uint16) ([]byte, error) {
	s.joined = false
	s.fCntUp = 0
	s.devNonce = lorawan.DevNonce(devNonce)

	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.JoinRequest,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.JoinRequestPayload{
			JoinEUI:  s.creds.JoinEUI,
			DevEUI:   s.creds.DevEUI,
			DevNonce: s.devNonce,
		},
	}
	if err := phy.SetUplinkJoinMIC(s.creds.AppKey); err != nil {
		return nil, fmt.Errorf("set join mic: %w", err)
	}
	return phy.MarshalBinary()
}

// AcceptJoin decrypts and verifies a JoinAccept and derives session keys.
// A LoRaWAN 1.0 JoinAccept MIC does not cover the DevNonce, so an accept
// answering an earlier JoinRequest still verifies. The keys derived from
// it are then wrong for the server and later confirmed uplinks go unacked.
func (s *Session) AcceptJoin(b []byte) error {
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(b); err != nil {
		return fmt.Errorf("decode join accept: %w", err)
	}
	if phy.MHDR.MType != lorawan.JoinAccept {
		return errNotForUs
	}
	if err := phy.DecryptJoinAcceptPayload(s.creds.AppKey); err != nil {
		return fmt.Errorf("decrypt join accept: %w", err)
	}
	ok, err := phy.ValidateDownlinkJoinMIC(lorawan.JoinRequestType, s.creds.JoinEUI, s.devNonce, s.creds.AppKey)
	if err != nil {
		return fmt.Errorf("validate join accept mic: %w", err)
	}
	if !ok {
		return errors.New("join accept mic mismatch")
	}

	ja, ok := phy.MACPayload.(*lorawan.JoinAcceptPayload)
	if !ok {
		return fmt.Errorf("unexpected join accept payload %T", phy.MACPayload)
	}

	nwk, err := deriveSessionKey(0x01, s.creds.AppKey, ja.HomeNetID, ja.JoinNonce, s.devNonce)
	if err != nil {
		return err
	}
	app, err := deriveSessionKey(0x02, s.creds.AppKey, ja.HomeNetID, ja.JoinNonce, s.devNonce)
	if err != nil {
		return err
	}

	s.devAddr = ja.DevAddr
	s.nwkSKey = nwk
	s.appSKey = app
	s.fCntUp = 0
	s.joined = true
	return nil
}

// Uplink builds an encrypted data uplink and advances the frame counter.
func (s *Session) Uplink(payload []byte, port uint8, confirmed bool) ([]byte, error) {
	if !s.joined {
		return nil, errors.New("not joined")
	}
	if port == 0 {
		return nil, errors.New("port 0 is reserved for MAC commands")
	}

	mType := lorawan.UnconfirmedDataUp
	if confirmed {
		mType = lorawan.ConfirmedDataUp
	}
	fPort := port
	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: mType,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: s.devAddr,
				FCnt:    s.fCntUp,
			},
			FPort:      &fPort,
			FRMPayload: []lorawan.Payload{&lorawan.DataPayload{Bytes: payload}},
		},
	}
	if err := phy.EncryptFRMPayload(s.appSKey); err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}
	if err := phy.SetUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, s.nwkSKey, s.nwkSKey); err != nil {
		return nil, fmt.Errorf("set data mic: %w", err)
	}
	b, err := phy.MarshalBinary()
	if err != nil {
		return nil, err
	}
	s.fCntUp++
	return b, nil
}

// Downlink verifies and decrypts a data downlink addressed to this session.
func (s *Session) Downlink(b []byte) (Downlink, error) {
	if !s.joined {
		return Downlink{}, errNotForUs
	}

	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(b); err != nil {
		return Downlink{}, fmt.Errorf("decode downlink: %w", err)
	}
	if phy.MHDR.MType != lorawan.UnconfirmedDataDown && phy.MHDR.MType != lorawan.ConfirmedDataDown {
		return Downlink{}, errNotForUs
	}
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok || mac.FHDR.DevAddr != s.devAddr {
		return Downlink{}, errNotForUs
	}

	ok, err := phy.ValidateDownlinkDataMIC(lorawan.LoRaWAN1_0, 0, s.nwkSKey)
	if err != nil {
		return Downlink{}, fmt.Errorf("validate downlink mic: %w", err)
	}
	if !ok {
		return Downlink{}, errors.New("downlink mic mismatch")
	}

	dl := Downlink{Ack: mac.FHDR.FCtrl.ACK, FCnt: mac.FHDR.FCnt}
	if mac.FPort == nil {
		return dl, nil
	}
	dl.Port = *mac.FPort

	key := s.appSKey
	if dl.Port == 0 {
		key = s.nwkSKey
	}
	if err := phy.DecryptFRMPayload(key); err != nil {
		return Downlink{}, fmt.Errorf("decrypt downlink: %w", err)
	}
	if len(mac.FRMPayload) > 0 {
		if dp, ok := mac.FRMPayload[0].(*lorawan.DataPayload); ok {
			dl.Payload = dp.Bytes
		}
	}
	return dl, nil
}

// deriveSessionKey implements the LoRaWAN 1.0 key derivation:
// aes128_encrypt(AppKey, typ | JoinNonce | NetID | DevNonce | pad16).
func deriveSessionKey(typ byte, appKey lorawan.AES128Key, netID lorawan.NetID, joinNonce lorawan.JoinNonce, devNonce lorawan.DevNonce) (lorawan.AES128Key, error) {
	var key lorawan.AES128Key

	netIDB, err := netID.MarshalBinary()
	if err != nil {
		return key, err
	}
	joinNonceB, err := joinNonce.MarshalBinary()
	if err != nil {
		return key, err
	}
	devNonceB, err := devNonce.MarshalBinary()
	if err != nil {
		return key, err
	}

	b := make([]byte, 16)
	b[0] = typ
	copy(b[1:4], joinNonceB)
	copy(b[4:7], netIDB)
	copy(b[7:9], devNonceB)

	block, err := aes.NewCipher(appKey[:])
	if err != nil {
		return key, err
	}
	block.Encrypt(key[:], b)
	return key, nil
}
