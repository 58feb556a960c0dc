package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const signatureDomain = "cryptocoffee"

// ErrInvalidSignature is returned when a request signature cannot be
// recovered or does not belong to the claimed caller.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// RequestDigest binds a request payload to the chain and the method it targets
// so a signature cannot be replayed against a different operation.
func RequestDigest(chainID uint64, method string, payload []byte) []byte {
	var chain [8]byte
	binary.BigEndian.PutUint64(chain[:], chainID)
	return ethcrypto.Keccak256(
		[]byte(signatureDomain),
		chain[:],
		[]byte(method),
		payload,
	)
}

// SignRequest produces a 65-byte recoverable signature over the request digest.
func SignRequest(key *PrivateKey, chainID uint64, method string, payload []byte) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	return ethcrypto.Sign(RequestDigest(chainID, method, payload), key.PrivateKey)
}

// RecoverSigner returns the identity that produced signature over the request.
func RecoverSigner(chainID uint64, method string, payload, signature []byte) ([20]byte, error) {
	var out [20]byte
	if len(signature) != 65 {
		return out, fmt.Errorf("%w: expected 65 bytes, got %d", ErrInvalidSignature, len(signature))
	}
	pub, err := ethcrypto.SigToPub(RequestDigest(chainID, method, payload), signature)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	copy(out[:], ethcrypto.PubkeyToAddress(*pub).Bytes())
	return out, nil
}

// VerifyCaller checks that signature was produced by the claimed caller.
func VerifyCaller(chainID uint64, method string, payload, signature []byte, caller [20]byte) error {
	signer, err := RecoverSigner(chainID, method, payload, signature)
	if err != nil {
		return err
	}
	if signer != caller {
		return fmt.Errorf("%w: signer %s does not match caller %s", ErrInvalidSignature, FormatAddress(signer), FormatAddress(caller))
	}
	return nil
}

// DecodeSignature parses a hex encoded signature with an optional 0x prefix.
func DecodeSignature(input string) ([]byte, error) {
	trimmed := strings.TrimSpace(input)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: signature required", ErrInvalidSignature)
	}
	sig, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return sig, nil
}
