package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicerelay/internal/utils"
)

func TestArtifactNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "output-0.wav", ArtifactName(0))
	assert.Equal(t, "output-17.wav", ArtifactName(17))

	assert.True(t, ValidArtifactName("output-3.wav"))
	for _, bad := range []string{"", "output-.wav", "../output-1.wav", "output-1.wav/..", "chatlog.txt", "output-x.wav"} {
		assert.False(t, ValidArtifactName(bad), bad)
	}
}

func TestLocalDirWriteRead(t *testing.T) {
	t.Parallel()

	dir := NewLocalDir(t.TempDir())
	path, err := dir.Write("output-1.wav", []byte("RIFF"))
	require.NoError(t, err)
	assert.FileExists(t, path)

	got, err := dir.Read("output-1.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), got)

	_, err = dir.Read("output-2.wav")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = dir.Write("../escape.wav", nil)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
