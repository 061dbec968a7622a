/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/base58"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/message"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/kms/legacykms"
)

// SignatureType is the message type of the single ed25519 signature
// decorator.
const SignatureType = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/signature/1.0/ed25519Sha512_single"

// ErrSignatureVerification is returned when a signature decorator fails
// to verify.
var ErrSignatureVerification = errors.New("signature verification failed")

// sigDataTimestampLen is the length of the big-endian unix timestamp
// prefixing the signed data.
const sigDataTimestampLen = 8

// SignField wraps field in a signature decorator signed by the given
// wallet verkey. The signed bytes are an 8-byte big-endian unix
// timestamp followed by the field's JSON serialization.
func (a *Agent) SignField(signerVerKey string, field interface{}) (message.Message, error) {
	fieldBytes, err := json.Marshal(field)
	if err != nil {
		return nil, fmt.Errorf("sign field: marshal field: %w", err)
	}

	sigData := make([]byte, sigDataTimestampLen, sigDataTimestampLen+len(fieldBytes))
	binary.BigEndian.PutUint64(sigData, uint64(time.Now().Unix()))
	sigData = append(sigData, fieldBytes...)

	signature, err := a.kms.SignMessage(sigData, signerVerKey)
	if err != nil {
		return nil, fmt.Errorf("sign field: %w", err)
	}

	return message.Message{
		message.TypeKey: SignatureType,
		"signer":        signerVerKey,
		"sig_data":      base64.URLEncoding.EncodeToString(sigData),
		"signature":     base64.URLEncoding.EncodeToString(signature),
	}, nil
}

// VerifySignedField checks a signature decorator and returns the signed
// field value. Any structural or cryptographic mismatch reports
// ErrSignatureVerification.
func VerifySignedField(dec message.Message) (interface{}, error) {
	if dec.Type() != SignatureType {
		return nil, fmt.Errorf("%w: unexpected decorator type %q", ErrSignatureVerification, dec.Type())
	}

	signer, _ := dec["signer"].(string)
	if signer == "" {
		return nil, fmt.Errorf("%w: missing signer", ErrSignatureVerification)
	}

	sigData, err := decodeField(dec, "sig_data")
	if err != nil {
		return nil, err
	}

	if len(sigData) <= sigDataTimestampLen {
		return nil, fmt.Errorf("%w: sig_data too short", ErrSignatureVerification)
	}

	signature, err := decodeField(dec, "signature")
	if err != nil {
		return nil, err
	}

	if err := legacykms.VerifySignature(base58.Decode(signer), sigData, signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	var field interface{}
	if err := json.Unmarshal(sigData[sigDataTimestampLen:], &field); err != nil {
		return nil, fmt.Errorf("%w: signed field is not valid JSON: %v", ErrSignatureVerification, err)
	}

	return field, nil
}

// SignedFieldTimestamp extracts the signing time embedded in a verified
// decorator's sig_data.
func SignedFieldTimestamp(dec message.Message) (time.Time, error) {
	sigData, err := decodeField(dec, "sig_data")
	if err != nil {
		return time.Time{}, err
	}

	if len(sigData) < sigDataTimestampLen {
		return time.Time{}, fmt.Errorf("%w: sig_data too short", ErrSignatureVerification)
	}

	return time.Unix(int64(binary.BigEndian.Uint64(sigData)), 0), nil
}

func decodeField(dec message.Message, key string) ([]byte, error) {
	raw, _ := dec[key].(string)
	if raw == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrSignatureVerification, key)
	}

	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s encoding: %v", ErrSignatureVerification, key, err)
	}

	return decoded, nil
}
