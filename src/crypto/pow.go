package crypto

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ProofOfWork is the admission payload carried in a HELLO message when
// k_pow > 0. It is self-contained: verifying it does not require any other
// protocol state besides the claimed sender_id.
type ProofOfWork struct {
	HashAlg    string `json:"hash_alg"`
	Difficulty int    `json:"difficulty_k"`
	Nonce      int64  `json:"nonce"`
	DigestHex  string `json:"digest_hex"`
}

// ProduceProofOfWork iterates nonces from 0 upward, computing
// sha256(strconv.Itoa(nonce)+nodeID), until it finds one whose hex digest has
// at least k leading zero characters. For k == 0 it returns a zero-cost
// proof immediately; the verifier treats k == 0 as always valid regardless of
// contents.
func ProduceProofOfWork(nodeID string, k int) ProofOfWork {
	if k <= 0 {
		return ProofOfWork{HashAlg: "sha256", Difficulty: 0, Nonce: 0, DigestHex: ""}
	}

	prefix := strings.Repeat("0", k)
	for nonce := int64(0); ; nonce++ {
		digest := sha256Hex(strconv.FormatInt(nonce, 10) + nodeID)
		if strings.HasPrefix(digest, prefix) {
			return ProofOfWork{
				HashAlg:    "sha256",
				Difficulty: k,
				Nonce:      nonce,
				DigestHex:  digest,
			}
		}
	}
}

// VerifyProofOfWork checks all four required conditions from the PoW engine
// spec: hash algorithm is sha256, the claimed difficulty matches k exactly,
// the digest recomputes from (nonce, senderID), and the digest actually has
// at least k leading hex zeros.
func VerifyProofOfWork(senderID string, pow ProofOfWork, k int) bool {
	if k <= 0 {
		return true
	}
	if pow.HashAlg != "sha256" {
		return false
	}
	if pow.Difficulty != k {
		return false
	}
	computed := sha256Hex(strconv.FormatInt(pow.Nonce, 10) + senderID)
	if computed != pow.DigestHex {
		return false
	}
	return leadingZeroHexChars(computed) >= k
}

func leadingZeroHexChars(digestHex string) int {
	n := 0
	for _, c := range digestHex {
		if c != '0' {
			break
		}
		n++
	}
	return n
}

func sha256Hex(s string) string {
	return hex.EncodeToString(SHA256([]byte(s)))
}

// DebugString is a compact human-readable rendering used in lifecycle logs.
func (p ProofOfWork) DebugString() string {
	return fmt.Sprintf("k=%d nonce=%d digest=%s", p.Difficulty, p.Nonce, p.DigestHex)
}
