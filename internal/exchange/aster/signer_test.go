package aster

import "testing"

func TestSigner_KnownVector(t *testing.T) {
	// Reference vector from the binance-compatible API docs.
	s := NewSigner("NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j")
	query := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"

	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"
	if got := s.Sign(query); got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}
}

func TestSigner_Wipe(t *testing.T) {
	s := NewSigner("topsecret")
	s.Wipe()
	for i, b := range s.secretKey {
		if b != 0 {
			t.Fatalf("secret byte %d not wiped", i)
		}
	}
	// Wiping a nil signer must not panic.
	var nilSigner *Signer
	nilSigner.Wipe()
}
