package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/yoockh/voicerelay/internal/utils"
)

var artifactName = regexp.MustCompile(`^output-[0-9]+\.wav$`)

// ArtifactName is the file name of the encoded utterance for turn.
func ArtifactName(turn int64) string {
	return fmt.Sprintf("output-%d.wav", turn)
}

func ValidArtifactName(name string) bool {
	return artifactName.MatchString(name)
}

// LocalDir keeps one WAV file per completed turn in a directory.
type LocalDir struct {
	root string
}

func NewLocalDir(root string) *LocalDir {
	if root == "" {
		root = "."
	}
	return &LocalDir{root: root}
}

func (d *LocalDir) Root() string { return d.root }

// Path resolves an artifact name inside the directory.
func (d *LocalDir) Path(name string) (string, error) {
	if !ValidArtifactName(name) {
		return "", utils.E(utils.CodeInvalidArgument, "LocalDir.Path", "invalid artifact name", nil)
	}
	return filepath.Join(d.root, name), nil
}

func (d *LocalDir) Write(name string, data []byte) (string, error) {
	path, err := d.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (d *LocalDir) Read(name string) ([]byte, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, utils.E(utils.CodeNotFound, "LocalDir.Read", "artifact not found", utils.ErrNotFound)
	}
	return b, err
}
