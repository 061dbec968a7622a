/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacykms

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/internal/cryptoutil"
)

func TestNewCryptoBox(t *testing.T) {
	w := New()

	b, err := NewCryptoBox(w)
	require.NoError(t, err)
	require.NotNil(t, b)

	_, err = NewCryptoBox(nil)
	require.EqualError(t, err, "cannot use parameter argument as KMS")
}

func TestEasyEasyOpen(t *testing.T) {
	senderWallet := New()
	senderKey, err := senderWallet.CreateKeySet()
	require.NoError(t, err)

	recWallet := New()
	recKey, err := recWallet.CreateKeySet()
	require.NoError(t, err)

	senderBox, err := NewCryptoBox(senderWallet)
	require.NoError(t, err)

	recBox, err := NewCryptoBox(recWallet)
	require.NoError(t, err)

	recCurvePub, err := cryptoutil.PublicEd25519toCurve25519(base58.Decode(recKey))
	require.NoError(t, err)

	senderCurvePub, err := cryptoutil.PublicEd25519toCurve25519(base58.Decode(senderKey))
	require.NoError(t, err)

	nonce := make([]byte, cryptoutil.NonceSize)
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	payload := []byte("secret payload")

	sealed, err := senderBox.Easy(payload, nonce, recCurvePub, senderKey)
	require.NoError(t, err)

	opened, err := recBox.EasyOpen(sealed, nonce, senderCurvePub, base58.Decode(recKey))
	require.NoError(t, err)
	require.Equal(t, payload, opened)

	t.Run("test easy open with wrong nonce", func(t *testing.T) {
		badNonce := make([]byte, cryptoutil.NonceSize)
		_, err = recBox.EasyOpen(sealed, badNonce, senderCurvePub, base58.Decode(recKey))
		require.EqualError(t, err, "failed to unpack")
	})

	t.Run("test easy with unknown sender key", func(t *testing.T) {
		_, err = senderBox.Easy(payload, nonce, recCurvePub, "no-such-key")
		require.Error(t, err)
	})
}

func TestSealSealOpen(t *testing.T) {
	recWallet := New()
	recKey, err := recWallet.CreateKeySet()
	require.NoError(t, err)

	recBox, err := NewCryptoBox(recWallet)
	require.NoError(t, err)

	recCurvePub, err := cryptoutil.PublicEd25519toCurve25519(base58.Decode(recKey))
	require.NoError(t, err)

	payload := []byte("anonymous payload")

	sealed, err := recBox.Seal(payload, recCurvePub, rand.Reader)
	require.NoError(t, err)

	opened, err := recBox.SealOpen(sealed, base58.Decode(recKey))
	require.NoError(t, err)
	require.Equal(t, payload, opened)

	t.Run("test seal open with short message", func(t *testing.T) {
		_, err = recBox.SealOpen([]byte("short"), base58.Decode(recKey))
		require.EqualError(t, err, "message too short")
	})

	t.Run("test seal open with wrong recipient", func(t *testing.T) {
		otherWallet := New()
		otherKey, err := otherWallet.CreateKeySet()
		require.NoError(t, err)

		otherBox, err := NewCryptoBox(otherWallet)
		require.NoError(t, err)

		_, err = otherBox.SealOpen(sealed, base58.Decode(otherKey))
		require.EqualError(t, err, "failed to unpack")
	})
}
