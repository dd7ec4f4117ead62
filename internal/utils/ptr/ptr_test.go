package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, "half", *String("half"))
	assert.Equal(t, 42, *Int(42))
	assert.InDelta(t, 21.0975, *Float64(21.0975), 1e-9)
	assert.Equal(t, 3, *To(3))
}

func TestClone(t *testing.T) {
	orig := Int(10)
	c := Clone(orig)
	*c = 20
	assert.Equal(t, 10, *orig)
	assert.Nil(t, Clone[int](nil))
}

func TestDerefAndEqual(t *testing.T) {
	assert.Equal(t, "", Deref[string](nil))
	assert.Equal(t, "x", Deref(String("x")))

	assert.True(t, Equal[int](nil, nil))
	assert.False(t, Equal(Int(1), nil))
	assert.True(t, Equal(Int(1), Int(1)))

	assert.True(t, NearlyEqual(Float64(100), Float64(100.004), 0.01))
	assert.False(t, NearlyEqual(Float64(100), Float64(100.5), 0.01))
	assert.False(t, NearlyEqual(nil, Float64(1), 0.01))
}
