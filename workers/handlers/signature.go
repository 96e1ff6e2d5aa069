package handlers

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func prefixHash(data []byte) common.Hash {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256Hash([]byte(msg))
}

// recoverSigner returns the address that personal_signed msg
func recoverSigner(msg string, sig string) (common.Address, error) {
	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature hex")
	}
	if len(sigBytes) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}

	if sigBytes[64] != 27 && sigBytes[64] != 28 && sigBytes[64] != 0 && sigBytes[64] != 1 {
		return common.Address{}, fmt.Errorf("wrong signature recovery id %d", sigBytes[64])
	}
	if sigBytes[64] == 27 || sigBytes[64] == 28 {
		sigBytes[64] -= 27
	}

	pub, err := crypto.SigToPub(prefixHash([]byte(msg)).Bytes(), sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot decode public key")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Message is the text From signs to authorize the bridge request
func (req *BridgeRequest) Message() string {
	assetID := req.AssetID
	if assetID == "" {
		assetID = "0"
	}
	value := req.Value
	if value == "" {
		value = "quote"
	}
	return fmt.Sprintf("bridge %s of asset %s on %s to %s on eid %d, value %s, gas %d, nonce %d, deadline %d",
		req.Amount, assetID, req.Contract, strings.ToLower(req.Recipient), req.DstEid, value, req.Gas, req.Nonce, req.Deadline)
}

func (req *ApproveRequest) Message() string {
	return fmt.Sprintf("approve %s on %s, nonce %d, deadline %d", req.Amount, req.Contract, req.Nonce, req.Deadline)
}
