package jwt

import (
	"testing"
	"time"
)

// FuzzVerify exercises the token verifier with arbitrary strings.
// Goal: no panics; inputs other than the seeded valid token must be rejected.
func FuzzVerify(f *testing.F) {
	mgr, err := NewManager(Config{Secret: testSecret})
	if err != nil {
		f.Fatal(err)
	}

	valid, err := mgr.Create(Claims{ClaimSubject: "fuzz", ClaimType: "access"}, 5*time.Minute)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiJ4In0.")
	f.Add(valid + "x")

	f.Fuzz(func(t *testing.T, tok string) {
		claims, err := mgr.Verify(tok)
		if err == nil && claims.Subject() != "fuzz" {
			t.Fatalf("unexpected accepted token with subject %q", claims.Subject())
		}
	})
}
