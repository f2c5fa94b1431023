package auth

import (
	"sync"

	"github.com/alexedwards/argon2id"
)

var params = &argon2id.Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var dummyHash = sync.OnceValue(func() string {
	h, _ := Hash("no-such-account")
	return h
})

// Hash returns an encoded Argon2id hash with its parameters embedded.
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, params)
}

// Verify checks a password against an encoded hash.
func Verify(password, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}

// VerifyMissing spends one comparison on a throwaway hash. Login calls it
// for unknown e-mails so they are rejected in the same time as a wrong password.
func VerifyMissing(password string) {
	_, _ = Verify(password, dummyHash())
}

// NeedsRehash reports whether encodedHash is unreadable or was produced with
// weaker parameters than Hash uses now.
func NeedsRehash(encodedHash string) bool {
	p, _, _, err := argon2id.DecodeHash(encodedHash)
	if err != nil {
		return true
	}
	return p.Memory < params.Memory ||
		p.Iterations < params.Iterations ||
		p.SaltLength < params.SaltLength ||
		p.KeyLength < params.KeyLength
}
