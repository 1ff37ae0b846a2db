package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/duosync/pkg/idx"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestNewIsValidULID(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := ulid.ParseStrict(id.String())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), ulid.Time(parsed.Time()), time.Minute)
	require.True(t, idx.Zero.IsZero())
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	a := idx.NewAt(at)
	b := idx.NewAt(at)

	// Same timestamp, so ordering comes from the monotonic entropy
	require.Less(t, a.String(), b.String())
}

func TestNewAtStampsTime(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	parsed, err := ulid.ParseStrict(idx.NewAt(at).String())
	require.NoError(t, err)
	require.Equal(t, ulid.Timestamp(at), parsed.Time())
}
