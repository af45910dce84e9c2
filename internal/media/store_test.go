package media

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/wabridge/internal/model"
)

func TestExtFromMIME(t *testing.T) {
	assert.Equal(t, "jpg", ExtFromMIME("image/jpeg"))
	assert.Equal(t, "ogg", ExtFromMIME("audio/ogg; codecs=opus"))
	assert.Equal(t, "m4a", ExtFromMIME("audio/mp4"))
	assert.Equal(t, "flac", ExtFromMIME("audio/flac"))
	assert.Equal(t, "bin", ExtFromMIME(""))
}

func TestSaveAndFindByID(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	media, err := s.Save("MSGID1", "image/png", []byte("fakepng"))
	require.NoError(t, err)
	assert.Equal(t, "/media/MSGID1.png", media.URL)
	assert.Equal(t, int64(7), media.Size)

	path, mime, err := s.FindByID("MSGID1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("fakepng"), data)
}

func TestFindByIDMissing(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.FindByID("nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
