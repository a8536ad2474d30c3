package codec

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pet-feeder/internal/logic"
)

func TestEventPreservesUnknownTimestamp(t *testing.T) {
	ev := logic.StatusEvent{StockPresent: true, WaterPresent: false, WeightGrams: 42}

	data, err := EncodeEvent(ev)
	require.NoError(t, err)
	got, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.Equal(t, ev, got)
	assert.False(t, got.ObservedAt.Known)
}

func TestEventPreservesKnownTimestamp(t *testing.T) {
	ev := logic.StatusEvent{WeightGrams: 7, ObservedAt: logic.Known(1_767_225_600)}

	data, err := EncodeEvent(ev)
	require.NoError(t, err)
	got, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.Equal(t, ev, got)
}

func TestScheduleKeepsFiredMarks(t *testing.T) {
	in := []logic.Entry{
		{Hour: 7, Minute: 30, Grams: 40, LastFired: logic.NoDay},
		{Hour: 18, Minute: 0, Grams: 60, LastFired: 20500},
	}
	data, err := EncodeSchedule(in)
	require.NoError(t, err)
	out, err := DecodeSchedule(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEmptySchedule(t *testing.T) {
	data, err := EncodeSchedule(nil)
	require.NoError(t, err)
	out, err := DecodeSchedule(data)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReferenceMillisecondPrecision(t *testing.T) {
	ref := logic.Reference{TickAtSync: 90*time.Second + 250*time.Millisecond, SecondsAtSync: 1_800_000_000}
	data, err := EncodeReference(ref)
	require.NoError(t, err)
	got, err := DecodeReference(data)
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}

func TestCount(t *testing.T) {
	data, err := EncodeCount(50)
	require.NoError(t, err)
	n, err := DecodeCount(data)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, err = EncodeCount(-1)
	assert.Error(t, err)
}

func TestCountOutOfRange(t *testing.T) {
	data, err := encMode.Marshal(uint64(math.MaxUint64))
	require.NoError(t, err)
	_, err = DecodeCount(data)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMalformedInput(t *testing.T) {
	garbage := []byte{0xff, 0x00, 0x13}

	_, err := DecodeEvent(garbage)
	assert.True(t, errors.Is(err, ErrMalformed), "event: %v", err)
	_, err = DecodeSchedule(garbage)
	assert.True(t, errors.Is(err, ErrMalformed), "schedule: %v", err)
	_, err = DecodeReference(garbage)
	assert.True(t, errors.Is(err, ErrMalformed), "reference: %v", err)
	_, err = DecodeCount(garbage)
	assert.True(t, errors.Is(err, ErrMalformed), "count: %v", err)
}
