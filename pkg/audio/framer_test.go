package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramerCarriesRemainder(t *testing.T) {
	f := NewFramer(MulawFrameSize)

	assert.Empty(t, f.Push(make([]byte, 100)))
	frames := f.Push(make([]byte, 250))
	assert.Len(t, frames, 2)
	for _, fr := range frames {
		assert.Len(t, fr, MulawFrameSize)
	}
	assert.Len(t, f.Flush(), 30)
	assert.Nil(t, f.Flush())
}

func TestFramerPreservesOrder(t *testing.T) {
	f := NewFramer(2)
	frames := f.Push([]byte{1, 2, 3})
	frames = append(frames, f.Push([]byte{4})...)
	assert.Equal(t, [][]byte{{1, 2}, {3, 4}}, frames)
}

func TestSampleAligner(t *testing.T) {
	a := NewSampleAligner(2)
	assert.Equal(t, []byte{1, 2}, a.Align([]byte{1, 2, 3}))
	assert.Equal(t, 1, a.Pending())
	assert.Equal(t, []byte{3, 4, 5, 6}, a.Align([]byte{4, 5, 6}))
	assert.Zero(t, a.Pending())
}
