package framework

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	artifactFormat = "hh-sol-artifact-1"
	buildInfoDir   = "build-info"
	dbgSuffix      = ".dbg.json"
)

// Artifact is a compiled contract ready for deployment.
type Artifact struct {
	ContractName string
	SourceName   string
	Abi          abi.ABI
	Bytecode     []byte

	// SolcVersion is the compiler that produced the bytecode, empty when
	// the build info is not available next to the artifact.
	SolcVersion string
}

type artifactObj struct {
	Format         string                     `json:"_format"`
	ContractName   string                     `json:"contractName"`
	SourceName     string                     `json:"sourceName"`
	Abi            json.RawMessage            `json:"abi"`
	Bytecode       string                     `json:"bytecode"`
	LinkReferences map[string]json.RawMessage `json:"linkReferences"`
}

type debugObj struct {
	BuildInfo string `json:"buildInfo"`
}

type buildInfoObj struct {
	SolcVersion string `json:"solcVersion"`
}

// ReadArtifact parses a hardhat artifact file.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}

	var obj artifactObj
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if obj.Format != "" && obj.Format != artifactFormat {
		return nil, fmt.Errorf("artifact %s: unsupported format %q", path, obj.Format)
	}
	if len(obj.LinkReferences) != 0 {
		return nil, fmt.Errorf("artifact %s: bytecode has unlinked libraries", path)
	}

	contractAbi, err := abi.JSON(bytes.NewReader(obj.Abi))
	if err != nil {
		return nil, fmt.Errorf("artifact %s: parse abi: %w", path, err)
	}

	code, err := hexutil.Decode(obj.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: decode bytecode: %w", path, err)
	}
	if len(code) == 0 {
		// interfaces and abstract contracts compile to empty bytecode
		return nil, fmt.Errorf("artifact %s: contract %s has no bytecode", path, obj.ContractName)
	}

	return &Artifact{
		ContractName: obj.ContractName,
		SourceName:   obj.SourceName,
		Abi:          contractAbi,
		Bytecode:     code,
		SolcVersion:  readSolcVersion(path),
	}, nil
}

// readSolcVersion follows the debug file hardhat writes next to each
// artifact to the build info that records the compiler version.
func readSolcVersion(artifactPath string) string {
	dbgPath := strings.TrimSuffix(artifactPath, ".json") + dbgSuffix
	data, err := os.ReadFile(dbgPath)
	if err != nil {
		return ""
	}
	var dbg debugObj
	if err := json.Unmarshal(data, &dbg); err != nil || dbg.BuildInfo == "" {
		return ""
	}

	data, err = os.ReadFile(filepath.Join(filepath.Dir(dbgPath), dbg.BuildInfo))
	if err != nil {
		return ""
	}
	var info buildInfoObj
	if err := json.Unmarshal(data, &info); err != nil {
		return ""
	}
	return info.SolcVersion
}

// ArtifactStore resolves contract names to artifacts under a hardhat
// artifacts directory.
type ArtifactStore struct {
	dir string
}

func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Lookup finds the artifact for name. name is either a bare contract name
// ("MetaNFT") or a fully qualified one ("contracts/MetaNFT.sol:MetaNFT").
func (s *ArtifactStore) Lookup(name string) (*Artifact, error) {
	if name == "" {
		return nil, &ArtifactError{Name: name, Err: errors.New("empty contract name")}
	}

	if source, contract, ok := strings.Cut(name, ":"); ok {
		source = filepath.FromSlash(source)
		if !filepath.IsLocal(source) || contract == "" || strings.ContainsAny(contract, `/\.`) {
			return nil, &ArtifactError{Name: name, Err: errors.New("fully qualified name must be a relative source path and a contract name")}
		}
		path := filepath.Join(s.dir, source, contract+".json")
		if _, err := os.Stat(path); err != nil {
			return nil, &ArtifactError{Name: name, Err: ErrArtifactNotFound}
		}
		return s.read(name, path)
	}

	paths, err := s.find(name)
	if err != nil {
		return nil, &ArtifactError{Name: name, Err: err}
	}
	switch len(paths) {
	case 0:
		return nil, &ArtifactError{Name: name, Err: ErrArtifactNotFound}
	case 1:
		return s.read(name, paths[0])
	default:
		candidates := make([]string, len(paths))
		for i, p := range paths {
			rel, _ := filepath.Rel(s.dir, filepath.Dir(p))
			candidates[i] = filepath.ToSlash(rel) + ":" + name
		}
		return nil, &ArtifactError{
			Name: name,
			Err:  fmt.Errorf("ambiguous contract name, use one of: %s", strings.Join(candidates, ", ")),
		}
	}
}

func (s *ArtifactStore) read(name, path string) (*Artifact, error) {
	artifact, err := ReadArtifact(path)
	if err != nil {
		return nil, &ArtifactError{Name: name, Err: err}
	}
	return artifact, nil
}

func (s *ArtifactStore) find(name string) ([]string, error) {
	target := name + ".json"
	var paths []string

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == buildInfoDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == target {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
