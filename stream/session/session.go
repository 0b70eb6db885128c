/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package session implements the stream mode authentication
// handshake: three messages (HELLO, HELLO_ACK, AUTH) and the
// responder's final check of AUTH, which let both endpoints prove possession
// of a claimed long-term signing key and derive a symmetric session
// key with no shared secret in advance, spec §4.9.
package session

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/trustedge-labs/trustedge/backend"
	"github.com/trustedge-labs/trustedge/primitives"
	"github.com/trustedge-labs/trustedge/stream/framing"
)

const protocolVersion uint16 = 1

// sessionInfo is the HKDF info string binding a derived key to this
// protocol and version, so a key can never be confused with one
// derived for a different purpose.
const sessionInfo = "trustedge-session-v1"

// hello is message 1, initiator to responder.
type hello struct {
	Version      uint16 `json:"version"`
	SigningPub   string `json:"signing_pub"`
	EphemeralPub []byte `json:"ephemeral_pub"`
	Nonce        []byte `json:"nonce"`
}

// helloAck is message 2, responder to initiator.
type helloAck struct {
	SigningPub   string `json:"signing_pub"`
	EphemeralPub []byte `json:"ephemeral_pub"`
	Nonce        []byte `json:"nonce"`
	Sig          []byte `json:"sig"`
}

// authMsg is message 3, initiator to responder.
type authMsg struct {
	Sig []byte `json:"sig"`
}

// Config configures one handshake attempt. Backend and KeyID identify
// this endpoint's long-term signing key; the peer's long-term key is
// learned and verified during the handshake itself, never configured
// up front.
type Config struct {
	Backend          backend.Backend
	KeyID            string
	SigAlg           primitives.SigAlg
	MaxFrameBytes    uint32
	HandshakeTimeout time.Duration
	// Limiter throttles handshake attempts per endpoint, spec §5's
	// concurrency model applied to the one part of the protocol an
	// unauthenticated peer can trigger before any identity is proven.
	Limiter *rate.Limiter
}

func (c Config) maxFrame() uint32 {
	if c.MaxFrameBytes == 0 {
		return framing.DefaultMaxFrameBytes
	}
	return c.MaxFrameBytes
}

// Session is the negotiated state of one authenticated connection:
// exclusively owned by its connection's task for the rest of the
// connection's lifetime, per spec §5's shared-resource policy.
type Session struct {
	Key             *primitives.Secret
	PeerPublicKey   []byte
	PeerSigAlg      primitives.SigAlg
	HeaderHash      [32]byte
	NoncePrefix     [4]byte
	KeyID           string
}

// Release wipes the session key. Callers must call this when the
// connection closes.
func (s *Session) Release() {
	if s.Key != nil {
		s.Key.Release()
	}
}

func withDeadline(ctx context.Context, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		return fn()
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return timeoutErr("handshake")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func readJSON(r io.Reader, maxFrame uint32, v interface{}) error {
	b, err := framing.ReadFrame(r, maxFrame)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func randomNonce() ([]byte, error) {
	return primitives.RandomBytes(16)
}

// deriveSessionKey folds the ECDH shared secret and both nonces into a
// session key via HKDF-SHA256, then immediately wipes the shared
// secret — it has no further use once the key is derived.
func deriveSessionKey(shared, nonceI, nonceR []byte) (*primitives.Secret, error) {
	defer func() {
		for i := range shared {
			shared[i] = 0
		}
	}()
	salt := append(append([]byte{}, nonceI...), nonceR...)
	key, err := primitives.HKDFDeriveSHA256(salt, shared, []byte(sessionInfo), 32)
	if err != nil {
		return nil, err
	}
	return primitives.NewSecret(key), nil
}

// sessionLockedParams derives the header hash, key identifier and
// nonce prefix both endpoints agree on from the full handshake
// transcript, which both sides possess byte-for-byte identical copies
// of. Deriving all three this way, rather than generating any of them
// independently on each side, is what lets both endpoints arrive at
// the same values without a fifth handshake message.
func sessionLockedParams(fullTranscript []byte) (headerHash [32]byte, keyID string, noncePrefix [4]byte) {
	headerHash = primitives.BLAKE3Sum(fullTranscript)
	idHash := primitives.BLAKE3Sum(append(append([]byte{}, fullTranscript...), 0x00))
	prefixHash := primitives.BLAKE3Sum(append(append([]byte{}, fullTranscript...), 0x01))
	copy(noncePrefix[:], prefixHash[:4])
	return headerHash, primitives.EncodeTagged("session", idHash[:16]), noncePrefix
}

// RunInitiator drives the handshake as the connecting side.
func RunInitiator(ctx context.Context, rw io.ReadWriter, cfg Config) (*Session, error) {
	var s *Session
	err := withDeadline(ctx, cfg.HandshakeTimeout, func() error {
		var err error
		s, err = runInitiator(ctx, rw, cfg)
		return err
	})
	return s, err
}

func runInitiator(ctx context.Context, rw io.ReadWriter, cfg Config) (*Session, error) {
	if cfg.Limiter != nil && !cfg.Limiter.Allow() {
		return nil, fmt.Errorf("session: handshake rate limit exceeded")
	}
	maxFrame := cfg.maxFrame()

	myPub, err := cfg.Backend.GetPublicKey(ctx, cfg.KeyID)
	if err != nil {
		return nil, err
	}
	curve := ecdh.P256()
	ephemeral, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	nonceI, err := randomNonce()
	if err != nil {
		return nil, err
	}

	h := hello{
		Version:      protocolVersion,
		SigningPub:   primitives.EncodeTagged(string(cfg.SigAlg), myPub),
		EphemeralPub: ephemeral.PublicKey().Bytes(),
		Nonce:        nonceI,
	}
	helloBytes, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	if err := framing.WriteFrame(rw, helloBytes, maxFrame); err != nil {
		return nil, err
	}

	var ack helloAck
	ackFrame, err := framing.ReadFrame(rw, maxFrame)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ackFrame, &ack); err != nil {
		return nil, err
	}

	peerAlg, peerPub, err := primitives.DecodeTagged(ack.SigningPub)
	if err != nil {
		return nil, err
	}
	transcriptToAck := append(append([]byte{}, helloBytes...), ackWithoutSig(ack)...)
	if verr := primitives.Verify(primitives.SigAlg(peerAlg), peerPub, transcriptToAck, ack.Sig); verr != nil {
		return nil, authFailed("hello_ack signature: %v", verr)
	}

	fullTranscript := append(append([]byte{}, helloBytes...), ackFrame...)
	mySig, err := cfg.Backend.Sign(ctx, cfg.KeyID, fullTranscript)
	if err != nil {
		return nil, err
	}
	authBytes, err := json.Marshal(authMsg{Sig: mySig})
	if err != nil {
		return nil, err
	}
	if err := framing.WriteFrame(rw, authBytes, maxFrame); err != nil {
		return nil, err
	}

	peerEphemeral, err := curve.NewPublicKey(ack.EphemeralPub)
	if err != nil {
		return nil, err
	}
	shared, err := ephemeral.ECDH(peerEphemeral)
	if err != nil {
		return nil, err
	}
	key, err := deriveSessionKey(shared, nonceI, ack.Nonce)
	if err != nil {
		return nil, err
	}

	hh, sessKeyID, prefix := sessionLockedParams(fullTranscript)
	return &Session{
		Key:           key,
		PeerPublicKey: peerPub,
		PeerSigAlg:    primitives.SigAlg(peerAlg),
		HeaderHash:    hh,
		NoncePrefix:   prefix,
		KeyID:         sessKeyID,
	}, nil
}

// RunResponder drives the handshake as the accepting side.
func RunResponder(ctx context.Context, rw io.ReadWriter, cfg Config) (*Session, error) {
	var s *Session
	err := withDeadline(ctx, cfg.HandshakeTimeout, func() error {
		var err error
		s, err = runResponder(ctx, rw, cfg)
		return err
	})
	return s, err
}

func runResponder(ctx context.Context, rw io.ReadWriter, cfg Config) (*Session, error) {
	if cfg.Limiter != nil && !cfg.Limiter.Allow() {
		return nil, fmt.Errorf("session: handshake rate limit exceeded")
	}
	maxFrame := cfg.maxFrame()

	helloFrame, err := framing.ReadFrame(rw, maxFrame)
	if err != nil {
		return nil, err
	}
	var h hello
	if err := json.Unmarshal(helloFrame, &h); err != nil {
		return nil, err
	}
	peerAlg, peerPub, err := primitives.DecodeTagged(h.SigningPub)
	if err != nil {
		return nil, err
	}

	myPub, err := cfg.Backend.GetPublicKey(ctx, cfg.KeyID)
	if err != nil {
		return nil, err
	}
	curve := ecdh.P256()
	ephemeral, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	nonceR, err := randomNonce()
	if err != nil {
		return nil, err
	}

	ackNoSig := helloAck{
		SigningPub:   primitives.EncodeTagged(string(cfg.SigAlg), myPub),
		EphemeralPub: ephemeral.PublicKey().Bytes(),
		Nonce:        nonceR,
	}
	transcriptToAck := append(append([]byte{}, helloFrame...), ackWithoutSig(ackNoSig)...)
	sigR, err := cfg.Backend.Sign(ctx, cfg.KeyID, transcriptToAck)
	if err != nil {
		return nil, err
	}
	ack := ackNoSig
	ack.Sig = sigR
	ackBytes, err := json.Marshal(ack)
	if err != nil {
		return nil, err
	}
	if err := framing.WriteFrame(rw, ackBytes, maxFrame); err != nil {
		return nil, err
	}

	var auth authMsg
	if err := readJSON(rw, maxFrame, &auth); err != nil {
		return nil, err
	}
	fullTranscript := append(append([]byte{}, helloFrame...), ackBytes...)
	if verr := primitives.Verify(primitives.SigAlg(peerAlg), peerPub, fullTranscript, auth.Sig); verr != nil {
		return nil, authFailed("auth signature: %v", verr)
	}

	peerEphemeral, err := curve.NewPublicKey(h.EphemeralPub)
	if err != nil {
		return nil, err
	}
	shared, err := ephemeral.ECDH(peerEphemeral)
	if err != nil {
		return nil, err
	}
	key, err := deriveSessionKey(shared, h.Nonce, nonceR)
	if err != nil {
		return nil, err
	}

	hh, sessKeyID, prefix := sessionLockedParams(fullTranscript)
	return &Session{
		Key:           key,
		PeerPublicKey: peerPub,
		PeerSigAlg:    primitives.SigAlg(peerAlg),
		HeaderHash:    hh,
		NoncePrefix:   prefix,
		KeyID:         sessKeyID,
	}, nil
}

// ackWithoutSig re-marshals ack with Sig cleared, so the responder's
// own signature over "transcript up to here" (step 2) is computed and
// verified against identical bytes on both sides.
func ackWithoutSig(ack helloAck) []byte {
	ack.Sig = nil
	b, _ := json.Marshal(ack)
	return b
}
