package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/retention/core/codec"
	"github.com/tailored-agentic-units/retention/retention"
	"github.com/tailored-agentic-units/retention/settings"
)

func sampleRecord() settings.Record {
	return settings.Record{
		HideLastN:           2,
		LastProcessedLength: 4,
		Cache: retention.Cache{
			LastN:  2,
			Length: 4,
			Hidden: []bool{true, true, false, false},
		},
	}
}

func TestKey(t *testing.T) {
	key := settings.Key("abc")
	assert.Equal(t, "conversations/abc", key)

	id, ok := settings.ConversationID(key)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = settings.ConversationID("other/abc")
	assert.False(t, ok)
}

func TestEncodeDecodeRecord(t *testing.T) {
	data, err := settings.EncodeRecord(sampleRecord())
	require.NoError(t, err)

	r, err := settings.DecodeRecord(data)
	require.NoError(t, err)

	assert.Equal(t, 2, r.HideLastN)
	assert.Equal(t, 4, r.LastProcessedLength)
	assert.True(t, r.Cache.Valid())
	assert.Equal(t, sampleRecord().Cache, r.Cache)
	assert.Len(t, r.CacheDigest, 32)
}

func TestDecodeRecord_DigestMismatchColdsCache(t *testing.T) {
	data, err := settings.EncodeRecord(sampleRecord())
	require.NoError(t, err)

	var tampered settings.Record
	require.NoError(t, codec.Unmarshal(data, &tampered))
	tampered.Cache.Hidden[3] = true
	data, err = codec.Marshal(tampered)
	require.NoError(t, err)

	r, err := settings.DecodeRecord(data)
	require.NoError(t, err)

	assert.Equal(t, 2, r.HideLastN, "retention count survives")
	assert.False(t, r.Cache.Valid())
	assert.Equal(t, 4, r.Cache.Length)
	assert.Nil(t, r.CacheDigest)
}

func TestDecodeRecord_MissingDigestColdsCache(t *testing.T) {
	data, err := codec.Marshal(sampleRecord())
	require.NoError(t, err)

	r, err := settings.DecodeRecord(data)
	require.NoError(t, err)
	assert.False(t, r.Cache.Valid())
}

func TestDecodeRecord_Corrupt(t *testing.T) {
	_, err := settings.DecodeRecord([]byte{0xff, 0x00, 0x13})
	assert.ErrorIs(t, err, settings.ErrCorruptRecord)

	data, err := settings.EncodeRecord(settings.Record{HideLastN: -4})
	require.NoError(t, err)
	_, err = settings.DecodeRecord(data)
	assert.ErrorIs(t, err, settings.ErrCorruptRecord)
}

func TestRecord_Clone(t *testing.T) {
	r := sampleRecord()
	clone := r.Clone()
	clone.Cache.Hidden[0] = false

	assert.True(t, r.Cache.Hidden[0])
}
