package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/loomq/loom/internal/payload"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.WriteBool(true))
	require.NoError(t, s.WriteUint8(0xAB))
	require.NoError(t, s.WriteUint16(0xBEEF))
	require.NoError(t, s.WriteUint32(0xDEADBEEF))
	require.NoError(t, s.WriteUint64(1<<60))
	require.NoError(t, s.WriteInt32(-12345))
	require.NoError(t, s.WriteInt64(-1))
	require.NoError(t, s.WriteFloat32(3.5))
	require.NoError(t, s.WriteFloat64(-2.25))
	require.NoError(t, s.WriteString("key/expr"))
	require.NoError(t, s.WriteBytes([]byte{0, 1, 2}))

	b, err := s.Finish()
	require.NoError(t, err)
	defer b.Release()

	d := NewDeserializer(b)
	vb, err := d.ReadBool()
	require.NoError(t, err)
	assert.True(t, vb)
	v8, _ := d.ReadUint8()
	assert.Equal(t, uint8(0xAB), v8)
	v16, _ := d.ReadUint16()
	assert.Equal(t, uint16(0xBEEF), v16)
	v32, _ := d.ReadUint32()
	assert.Equal(t, uint32(0xDEADBEEF), v32)
	v64, _ := d.ReadUint64()
	assert.Equal(t, uint64(1<<60), v64)
	i32, _ := d.ReadInt32()
	assert.Equal(t, int32(-12345), i32)
	i64, _ := d.ReadInt64()
	assert.Equal(t, int64(-1), i64)
	f32, _ := d.ReadFloat32()
	assert.Equal(t, float32(3.5), f32)
	f64, _ := d.ReadFloat64()
	assert.Equal(t, -2.25, f64)
	str, _ := d.ReadString()
	assert.Equal(t, "key/expr", str)
	raw, _ := d.ReadBytes()
	assert.Equal(t, []byte{0, 1, 2}, raw)
	assert.Equal(t, 0, d.Remaining())
}

type pair struct {
	f float64
	i int32
}

func TestTupleSequenceRoundTrip(t *testing.T) {
	pairs := []pair{{1.5, 1}, {2.4, 2}, {-3.1, 3}, {4.2, 4}}

	s := NewSerializer()
	require.NoError(t, s.WriteSequenceLength(len(pairs)))
	for _, p := range pairs {
		require.NoError(t, s.WriteFloat64(p.f))
		require.NoError(t, s.WriteInt32(p.i))
	}
	b, err := s.Finish()
	require.NoError(t, err)
	defer b.Release()

	d := NewDeserializer(b)
	n, err := d.ReadSequenceLength()
	require.NoError(t, err)
	require.Equal(t, len(pairs), n)

	got := make([]pair, 0, n)
	for i := 0; i < n; i++ {
		f, err := d.ReadFloat64()
		require.NoError(t, err)
		v, err := d.ReadInt32()
		require.NoError(t, err)
		got = append(got, pair{f, v})
	}
	// Exact float and integer equality across the round trip.
	assert.Equal(t, pairs, got)
}

func TestFinishConsumesSerializer(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.WriteUint32(1))

	b, err := s.Finish()
	require.NoError(t, err)
	defer b.Release()

	assert.ErrorIs(t, s.WriteUint32(2), ErrFinished)
	assert.ErrorIs(t, s.WriteString("x"), ErrFinished)
	_, err = s.Finish()
	assert.ErrorIs(t, err, ErrFinished)
}

func TestInsufficientData(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.WriteUint16(7))
	b, err := s.Finish()
	require.NoError(t, err)
	defer b.Release()

	d := NewDeserializer(b)
	_, err = d.ReadUint64()
	assert.ErrorIs(t, err, payload.ErrInsufficientData)
}

func TestDecodeMismatchOnOversizedLength(t *testing.T) {
	s := NewSerializer()
	// Declares far more elements than bytes follow.
	require.NoError(t, s.WriteSequenceLength(1000))
	require.NoError(t, s.WriteUint8(1))
	b, err := s.Finish()
	require.NoError(t, err)
	defer b.Release()

	d := NewDeserializer(b)
	_, err = d.ReadSequenceLength()
	assert.ErrorIs(t, err, ErrDecodeMismatch)
}

func TestDecodeMismatchOnOversizedByteString(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.WriteSequenceLength(500))
	b, err := s.Finish()
	require.NoError(t, err)
	defer b.Release()

	d := NewDeserializer(b)
	_, err = d.ReadBytes()
	assert.ErrorIs(t, err, ErrDecodeMismatch)
}

func TestBoolMismatch(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.WriteUint8(7))
	b, err := s.Finish()
	require.NoError(t, err)
	defer b.Release()

	_, err = NewDeserializer(b).ReadBool()
	assert.ErrorIs(t, err, ErrDecodeMismatch)
}

func TestEmptySequence(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.WriteSequenceLength(0))
	b, err := s.Finish()
	require.NoError(t, err)
	defer b.Release()

	n, err := NewDeserializer(b).ReadSequenceLength()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nums := rapid.SliceOfN(rapid.Uint64(), 0, 32).Draw(t, "nums")
		strs := rapid.SliceOfN(rapid.String(), 0, 16).Draw(t, "strs")

		s := NewSerializer()
		if err := s.WriteSequenceLength(len(nums)); err != nil {
			t.Fatal(err)
		}
		for _, v := range nums {
			if err := s.WriteUint64(v); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.WriteSequenceLength(len(strs)); err != nil {
			t.Fatal(err)
		}
		for _, v := range strs {
			if err := s.WriteString(v); err != nil {
				t.Fatal(err)
			}
		}
		b, err := s.Finish()
		if err != nil {
			t.Fatal(err)
		}
		defer b.Release()

		d := NewDeserializer(b)
		n, err := d.ReadSequenceLength()
		if err != nil || n != len(nums) {
			t.Fatalf("length %d err %v", n, err)
		}
		for i, want := range nums {
			got, err := d.ReadUint64()
			if err != nil || got != want {
				t.Fatalf("num %d: got %d err %v", i, got, err)
			}
		}
		n, err = d.ReadSequenceLength()
		if err != nil || n != len(strs) {
			t.Fatalf("length %d err %v", n, err)
		}
		for i, want := range strs {
			got, err := d.ReadString()
			if err != nil || got != want {
				t.Fatalf("str %d: got %q err %v", i, got, err)
			}
		}
		if d.Remaining() != 0 {
			t.Fatalf("%d bytes left over", d.Remaining())
		}
	})
}
