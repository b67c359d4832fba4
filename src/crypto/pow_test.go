package crypto

import "testing"

func TestProduceVerifyRoundTrip(t *testing.T) {
	ids := []string{"node-a", "node-b", "3f9c2e11-44aa-4b3e-9c1a-000000000001"}
	ks := []int{0, 1, 3, 5}

	for _, id := range ids {
		for _, k := range ks {
			pow := ProduceProofOfWork(id, k)
			if !VerifyProofOfWork(id, pow, k) {
				t.Fatalf("VerifyProofOfWork(%q, ProduceProofOfWork(%q, %d), %d) = false, want true", id, id, k, k)
			}
		}
	}
}

func TestProduceProofOfWorkMeetsDifficulty(t *testing.T) {
	for _, k := range []int{1, 2, 3, 4} {
		pow := ProduceProofOfWork("node-x", k)
		if pow.Difficulty != k {
			t.Fatalf("k=%d: Difficulty = %d, want %d", k, pow.Difficulty, k)
		}
		if leadingZeroHexChars(pow.DigestHex) < k {
			t.Fatalf("k=%d: digest %q has fewer than %d leading hex zeros", k, pow.DigestHex, k)
		}
	}
}

func TestProduceProofOfWorkZeroDifficultyIsFree(t *testing.T) {
	pow := ProduceProofOfWork("node-x", 0)
	if pow.Nonce != 0 || pow.Difficulty != 0 {
		t.Fatalf("k=0 should short-circuit to a zero-cost proof, got %+v", pow)
	}
}

func TestVerifyProofOfWorkRejectsTamperedNonce(t *testing.T) {
	pow := ProduceProofOfWork("node-x", 3)
	pow.Nonce++
	if VerifyProofOfWork("node-x", pow, 3) {
		t.Fatalf("expected tampered nonce to fail verification")
	}
}

func TestVerifyProofOfWorkRejectsWrongSender(t *testing.T) {
	pow := ProduceProofOfWork("node-x", 3)
	if VerifyProofOfWork("node-y", pow, 3) {
		t.Fatalf("expected proof bound to a different sender_id to fail verification")
	}
}

func TestVerifyProofOfWorkRejectsDifficultyMismatch(t *testing.T) {
	pow := ProduceProofOfWork("node-x", 3)
	if VerifyProofOfWork("node-x", pow, 4) {
		t.Fatalf("expected a proof claiming k=3 to fail verification against k=4")
	}
}

func TestVerifyProofOfWorkRejectsWrongHashAlg(t *testing.T) {
	pow := ProduceProofOfWork("node-x", 3)
	pow.HashAlg = "md5"
	if VerifyProofOfWork("node-x", pow, 3) {
		t.Fatalf("expected a non-sha256 hash_alg to fail verification")
	}
}
