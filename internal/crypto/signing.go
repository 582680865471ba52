package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// Signer signs audit reports with an ephemeral Ed25519 keypair generated at
// process start. The public key ships inside every report so consumers can
// verify it was produced by this service instance.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	log.Printf("generated ephemeral Ed25519 signing keypair, public key %s", hex.EncodeToString(pub))
	return &Signer{priv: priv, pub: pub}, nil
}

// PublicKeyHex returns the verification key.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.pub)
}

// SignReport signs the SHA-256 of the canonical report JSON. Signature and
// public key fields are excluded from the signed payload.
func (s *Signer) SignReport(rep *domain.Report) (string, string, error) {
	unsigned := *rep
	unsigned.Signature = ""
	unsigned.PublicKey = ""

	canonical, err := canonicalJSON(&unsigned)
	if err != nil {
		return "", "", err
	}
	digest := sha256.Sum256(canonical)
	sig := ed25519.Sign(s.priv, digest[:])
	return hex.EncodeToString(sig), s.PublicKeyHex(), nil
}

// Verify checks a report signature against a hex public key.
func Verify(rep *domain.Report, signatureHex, publicKeyHex string) bool {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	unsigned := *rep
	unsigned.Signature = ""
	unsigned.PublicKey = ""
	canonical, err := canonicalJSON(&unsigned)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(canonical)
	return ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig)
}

// canonicalJSON round-trips through a map so keys come out sorted regardless
// of struct field order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
