package kvstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/storage"
)

func TestKeyToken(t *testing.T) {
	tests := map[string]string{
		"T14112023221321": "T14112023221321",
		"T 1.2/3":         "T_1_2_3",
		"a-b_c=d":         "a-b_c=d",
	}
	for in, want := range tests {
		assert.Equal(t, want, keyToken(in), in)
	}
}

func TestIsConflict(t *testing.T) {
	assert.True(t, isConflict(jetstream.ErrKeyExists))
	assert.True(t, isConflict(fmt.Errorf("update: %w", &jetstream.APIError{
		ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence,
	})))
	assert.False(t, isConflict(jetstream.ErrKeyNotFound))
	assert.False(t, isConflict(fmt.Errorf("boom")))
}

func TestDecode(t *testing.T) {
	table, err := storage.TableFor(storage.KindSection)
	require.NoError(t, err)

	rec, err := decode(table, []byte(`{"ts":1700000000.5,"section_id":"S3","torpedo_axle_count":12}`))
	require.NoError(t, err)
	assert.Equal(t, storage.Record{"ts": 1700000000.5, "section_id": "S3", "torpedo_axle_count": int64(12)}, rec)

	_, err = decode(table, []byte(`{"unknown":1}`))
	assert.True(t, errors.IsInvalid(err))

	_, err = decode(table, []byte(`not json`))
	assert.Error(t, err)
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))
}
