package settings

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/tailored-agentic-units/retention/core/codec"
	"github.com/tailored-agentic-units/retention/retention"
)

// NamespaceConversations prefixes every conversation record key.
const NamespaceConversations = "conversations"

// Key returns the store key of a conversation's record.
func Key(conversationID string) string {
	return NamespaceConversations + "/" + conversationID
}

// ConversationID returns the conversation a key belongs to.
func ConversationID(key string) (string, bool) {
	return strings.CutPrefix(key, NamespaceConversations+"/")
}

// Record is the persisted state of one conversation.
type Record struct {
	HideLastN           int             `cbor:"hide_last_n" json:"hide_last_n"`
	LastProcessedLength int             `cbor:"last_processed_length" json:"last_processed_length"`
	Cache               retention.Cache `cbor:"cache" json:"cache"`
	CacheDigest         []byte          `cbor:"cache_digest,omitempty" json:"cache_digest,omitempty"`
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Cache = r.Cache.Clone()
	r.CacheDigest = bytes.Clone(r.CacheDigest)
	return r
}

// Digest returns the BLAKE3 hash of the deterministic encoding of c.
func Digest(c retention.Cache) ([]byte, error) {
	data, err := codec.Marshal(c)
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(data)
	return sum[:], nil
}

// EncodeRecord stamps r with the digest of its cache and encodes it.
func EncodeRecord(r Record) ([]byte, error) {
	digest, err := Digest(r.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to digest cache: %w", err)
	}
	r.CacheDigest = digest

	data, err := codec.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord decodes a stored record. A cache whose digest does not match
// is replaced by a stale cache with the same bookkeeping, so it can never
// feed override detection. The retention count is kept either way.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := codec.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	if r.HideLastN < 0 {
		return Record{}, fmt.Errorf("%w: negative retention count %d", ErrCorruptRecord, r.HideLastN)
	}

	digest, err := Digest(r.Cache)
	if err != nil || !bytes.Equal(digest, r.CacheDigest) {
		r.Cache = retention.Stale(r.Cache.LastN, r.Cache.Length)
		r.CacheDigest = nil
	}
	return r, nil
}
