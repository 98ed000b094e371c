package session

import (
	"encoding/hex"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/sewerwatch/portal/internal/core/ports"
)

const namespacePrefix = "client:"

// Stores hands out per-client stores over a shared pair of scopes.
type Stores struct {
	durable   ports.Scope
	ephemeral ports.Scope
	log       zerolog.Logger
}

var _ ports.CredentialStores = (*Stores)(nil)

func NewStores(durable, ephemeral ports.Scope, log zerolog.Logger) *Stores {
	return &Stores{durable: durable, ephemeral: ephemeral, log: log}
}

func (s *Stores) For(clientID string) ports.CredentialStore {
	return &Store{
		ns:        Namespace(clientID),
		durable:   s.durable,
		ephemeral: s.ephemeral,
		log:       s.log,
	}
}

// Namespace derives the storage key prefix of a client. The raw cookie
// value never reaches the storage backend or the logs.
func Namespace(clientID string) string {
	sum := blake2b.Sum256([]byte(clientID))
	return namespacePrefix + hex.EncodeToString(sum[:16])
}
