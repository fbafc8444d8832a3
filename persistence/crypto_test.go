package persistence

import "testing"

func TestEncryptDecrypt_RoundTrips(t *testing.T) {
	key := DefaultKey()
	plaintext := []byte("a secret message that does not align to a block boundary")

	iv, ciphertext, err := encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := decrypt(key, iv, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("decrypt() = %q, want %q", got, plaintext)
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	key := DefaultKey()
	wrongKey := make([]byte, KeySize)
	copy(wrongKey, "totally-different-key-material!!")

	iv, ciphertext, err := encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := decrypt(wrongKey, iv, ciphertext); err == nil {
		t.Error("decrypt with the wrong key should fail (bad padding or garbage plaintext)")
	}
}

func TestPKCS7_PadUnpad(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("exactly16bytes!!"),
		[]byte("seventeen bytes!!"),
	}
	for _, data := range cases {
		padded := pkcs7Pad(data, 16)
		if len(padded)%16 != 0 {
			t.Fatalf("padded length %d is not a block multiple for input %q", len(padded), data)
		}
		unpadded, err := pkcs7Unpad(padded)
		if err != nil {
			t.Fatalf("pkcs7Unpad: %v", err)
		}
		if string(unpadded) != string(data) {
			t.Errorf("round trip = %q, want %q", unpadded, data)
		}
	}
}

func TestDefaultKey_IsDeterministic(t *testing.T) {
	a := DefaultKey()
	b := DefaultKey()
	if len(a) != KeySize {
		t.Fatalf("len(DefaultKey()) = %d, want %d", len(a), KeySize)
	}
	if string(a) != string(b) {
		t.Error("DefaultKey() should be deterministic across calls")
	}
}
