package base58

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

func DecodeFromString(str string) (solana.PublicKey, error) {
	decoded, err := base58.Decode(str)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if len(decoded) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("decoded to %d bytes, expected %d", len(decoded), solana.PublicKeyLength)
	}
	return solana.PublicKeyFromBytes(decoded), nil
}

func MustDecodeFromString(str string) solana.PublicKey {
	pubkey, err := DecodeFromString(str)
	if err != nil {
		panic(fmt.Sprintf("invalid base58 address %q: %s", str, err))
	}
	return pubkey
}

func EncodeToString(b []byte) string {
	return base58.Encode(b)
}
