package window

import (
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
)

func TestSizeHintsEncode(t *testing.T) {
	buf := sizeHints{positioned: true, minWidth: 320, minHeight: 240}.encode()
	assert.Len(t, buf, 72)
	assert.Equal(t, uint32(hintUSPosition|hintPMinSize), xgb.Get32(buf))
	assert.Equal(t, uint32(320), xgb.Get32(buf[20:]))
	assert.Equal(t, uint32(240), xgb.Get32(buf[24:]))
	assert.Zero(t, xgb.Get32(buf[28:]))
}

func TestSizeHintsLocked(t *testing.T) {
	buf := sizeHints{minWidth: 640, minHeight: 480, maxWidth: 640, maxHeight: 480}.encode()
	assert.Equal(t, uint32(hintPMinSize|hintPMaxSize), xgb.Get32(buf))
	assert.Equal(t, uint32(640), xgb.Get32(buf[28:]))
	assert.Equal(t, uint32(480), xgb.Get32(buf[32:]))
}

func TestAtomListRoundTrip(t *testing.T) {
	atoms := []xproto.Atom{12, 400, 70000}
	got := decodeAtoms(encodeAtoms(atoms))
	assert.Equal(t, atoms, got)
	assert.True(t, containsAtom(got, 400))
	assert.False(t, containsAtom(got, 0))
	assert.False(t, containsAtom(got, 5))
}

func TestDestroyedWindowRejectsOps(t *testing.T) {
	w := &x11Window{closed: true}
	assert.ErrorIs(t, w.Show(), ErrWindowClosed)
	assert.ErrorIs(t, w.Minimize(), ErrWindowClosed)
	assert.ErrorIs(t, w.Maximize(), ErrWindowClosed)
	assert.ErrorIs(t, w.SetBounds(Bounds{Width: 10, Height: 10}), ErrWindowClosed)
	assert.ErrorIs(t, w.SetTitle("x"), ErrWindowClosed)
	assert.NoError(t, w.Close())
}
