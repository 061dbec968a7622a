/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package packer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/internal/cryptoutil"
)

// Pack encrypts payload for the given recipient verification keys
// (raw ed25519 public keys). Passing an empty senderKey produces an
// Anoncrypt envelope; a base58 verification key held by the wallet
// produces an Authcrypt envelope the recipient can attribute to that key.
func (p *Packer) Pack(payload []byte, recipients [][]byte, senderKey string) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("pack: empty recipients")
	}

	cek := make([]byte, chacha.KeySize)
	if _, err := p.randSource.Read(cek); err != nil {
		return nil, fmt.Errorf("pack: random cek: %w", err)
	}

	var (
		encRecipients []recipient
		err           error
	)

	if senderKey == "" {
		encRecipients, err = p.buildAnonRecipients(cek, recipients)
	} else {
		encRecipients, err = p.buildAuthRecipients(cek, recipients, senderKey)
	}

	if err != nil {
		return nil, err
	}

	alg := authCrypt
	if senderKey == "" {
		alg = anonCrypt
	}

	protectedBytes, err := json.Marshal(protected{
		Enc:        "xchacha20poly1305_ietf",
		Typ:        encodingType,
		Alg:        alg,
		Recipients: encRecipients,
	})
	if err != nil {
		return nil, fmt.Errorf("pack: marshal protected header: %w", err)
	}

	return p.encryptPayload(cek, protectedBytes, payload)
}

func (p *Packer) buildAuthRecipients(cek []byte, recipients [][]byte, senderKey string) ([]recipient, error) {
	encRecipients := make([]recipient, 0, len(recipients))

	for _, recKey := range recipients {
		recCurvePub, err := p.kms.ConvertToEncryptionKey(recKey)
		if err != nil {
			return nil, fmt.Errorf("pack: convert recipient key: %w", err)
		}

		nonce := make([]byte, cryptoutil.NonceSize)
		if _, err = p.randSource.Read(nonce); err != nil {
			return nil, fmt.Errorf("pack: random nonce: %w", err)
		}

		encCEK, err := p.box.Easy(cek, nonce, recCurvePub, senderKey)
		if err != nil {
			return nil, fmt.Errorf("pack: encrypt cek: %w", err)
		}

		// the sender key travels sealed to the recipient so only the
		// recipient can learn the message origin
		encSender, err := p.box.Seal([]byte(senderKey), recCurvePub, p.randSource)
		if err != nil {
			return nil, fmt.Errorf("pack: seal sender key: %w", err)
		}

		encRecipients = append(encRecipients, recipient{
			EncryptedKey: base64.URLEncoding.EncodeToString(encCEK),
			Header: recipientHeader{
				KID:    base58.Encode(recKey),
				Sender: base64.URLEncoding.EncodeToString(encSender),
				IV:     base64.URLEncoding.EncodeToString(nonce),
			},
		})
	}

	return encRecipients, nil
}

func (p *Packer) buildAnonRecipients(cek []byte, recipients [][]byte) ([]recipient, error) {
	encRecipients := make([]recipient, 0, len(recipients))

	for _, recKey := range recipients {
		recCurvePub, err := p.kms.ConvertToEncryptionKey(recKey)
		if err != nil {
			return nil, fmt.Errorf("pack: convert recipient key: %w", err)
		}

		encCEK, err := p.box.Seal(cek, recCurvePub, p.randSource)
		if err != nil {
			return nil, fmt.Errorf("pack: seal cek: %w", err)
		}

		encRecipients = append(encRecipients, recipient{
			EncryptedKey: base64.URLEncoding.EncodeToString(encCEK),
			Header:       recipientHeader{KID: base58.Encode(recKey)},
		})
	}

	return encRecipients, nil
}

// encryptPayload encrypts the payload with chacha20poly1305, using the
// base64 of the protected header as additional authenticated data.
func (p *Packer) encryptPayload(cek, protectedBytes, payload []byte) ([]byte, error) {
	protectedB64 := base64.URLEncoding.EncodeToString(protectedBytes)

	nonce := make([]byte, chacha.NonceSize)
	if _, err := p.randSource.Read(nonce); err != nil {
		return nil, fmt.Errorf("pack: random payload nonce: %w", err)
	}

	chachaCipher, err := chacha.New(cek)
	if err != nil {
		return nil, fmt.Errorf("pack: payload cipher: %w", err)
	}

	sealed := chachaCipher.Seal(nil, nonce, payload, []byte(protectedB64))

	// the tag is detached in the legacy format
	tagOffset := len(sealed) - chachaCipher.Overhead()

	envelopeBytes, err := json.Marshal(legacyEnvelope{
		Protected:  protectedB64,
		IV:         base64.URLEncoding.EncodeToString(nonce),
		CipherText: base64.URLEncoding.EncodeToString(sealed[:tagOffset]),
		Tag:        base64.URLEncoding.EncodeToString(sealed[tagOffset:]),
	})
	if err != nil {
		return nil, fmt.Errorf("pack: marshal envelope: %w", err)
	}

	return envelopeBytes, nil
}
