package framework

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// returnsStop is creation code whose runtime is the single byte 0x00.
const returnsStop = "0x6001600c60003960016000f300"

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// writeArtifact lays out a hardhat style artifact for name under
// dir/<source>/<name>.json and returns its path.
func writeArtifact(t *testing.T, dir, source, name, bytecode string) string {
	t.Helper()

	obj := map[string]interface{}{
		"_format":                artifactFormat,
		"contractName":           name,
		"sourceName":             source,
		"abi":                    []interface{}{},
		"bytecode":               bytecode,
		"deployedBytecode":       "0x00",
		"linkReferences":         map[string]interface{}{},
		"deployedLinkReferences": map[string]interface{}{},
	}
	data, err := json.Marshal(obj)
	require.NoError(t, err)

	path := filepath.Join(dir, filepath.FromSlash(source), name+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
