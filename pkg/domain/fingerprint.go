package domain

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
)

// SourceFile is a file in build context.
type SourceFile struct {
	// path of the file in build context.
	Path string `json:"path" validate:"required"`

	// hash of the file content.
	Hash string `json:"hash" validate:"required"`
}

// AppCodeVersion is a version of the application code to be built.
type AppCodeVersion struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Commit string `json:"commit"`
}

// Normalized returns AppCodeVersion whose repo and branch are lowercased.
func (a AppCodeVersion) Normalized() AppCodeVersion {
	return AppCodeVersion{
		Repo:   strings.ToLower(a.Repo),
		Branch: strings.ToLower(a.Branch),
		Commit: a.Commit,
	}
}

// BuildInputs is what a ContextVersion builds.
type BuildInputs struct {
	Files          []SourceFile
	DockerfileHash string
	AppCodeVersion AppCodeVersion
	IsTesting      bool
}

// Normalized returns BuildInputs with sorted file list and lowercased repo/branch.
//
// Files are sorted by path, then by hash. Files sharing a path are kept as they are.
func (b BuildInputs) Normalized() BuildInputs {
	files := slices.Clone(b.Files)
	if files == nil {
		files = []SourceFile{}
	}
	slices.SortFunc(files, func(a, b SourceFile) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Hash, b.Hash)
	})

	return BuildInputs{
		Files:          files,
		DockerfileHash: b.DockerfileHash,
		AppCodeVersion: b.AppCodeVersion.Normalized(),
		IsTesting:      b.IsTesting,
	}
}

// HashContent returns hex encoded hash of content.
func HashContent(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Fingerprint computes the identity of BuildInputs.
//
// The order of files does not matter, but everything else does.
// Each field is length-prefixed, so different inputs never share an encoding.
func Fingerprint(inputs BuildInputs) string {
	n := inputs.Normalized()

	h := blake3.New()
	writeUint(h, uint64(len(n.Files)))
	for _, f := range n.Files {
		writeString(h, f.Path)
		writeString(h, f.Hash)
	}
	writeString(h, n.DockerfileHash)
	writeString(h, n.AppCodeVersion.Repo)
	writeString(h, n.AppCodeVersion.Branch)
	writeString(h, n.AppCodeVersion.Commit)
	if n.IsTesting {
		writeUint(h, 1)
	} else {
		writeUint(h, 0)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeUint(h hash.Hash, v uint64) {
	buf := make([]byte, binary.MaxVarintLen64)
	l := binary.PutUvarint(buf, v)
	h.Write(buf[:l])
}

func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}
