package domain

import (
	"slices"
	"strings"
	"time"
)

// InputClusterConfig describes a multi-service cluster.
type InputClusterConfig struct {
	InputClusterConfigId  string
	AutoIsolationConfigId string

	ClusterSimilarity

	ParentInputClusterConfigId string

	CreatedByUser string
	OwnedByOrg    string

	CreatedAt time.Time
	SoftDelete
}

// ClusterSimilarity is the key to find similar InputClusterConfigs.
//
// Two configs are similar when they have the same repo, branch, isTesting and file path set.
type ClusterSimilarity struct {
	Repo      string
	Branch    string
	IsTesting bool

	// sorted, de-duplicated file paths.
	Files []string
}

// NewClusterSimilarity normalizes inputs: repo and branch are lowercased, files are sorted and de-duplicated.
func NewClusterSimilarity(repo, branch string, isTesting bool, files []string) ClusterSimilarity {
	fs := slices.Clone(files)
	slices.Sort(fs)
	fs = slices.Compact(fs)
	if fs == nil {
		fs = []string{}
	}
	return ClusterSimilarity{
		Repo:      strings.ToLower(repo),
		Branch:    strings.ToLower(branch),
		IsTesting: isTesting,
		Files:     fs,
	}
}

func (c ClusterSimilarity) Equal(o ClusterSimilarity) bool {
	return c.Repo == o.Repo &&
		c.Branch == o.Branch &&
		c.IsTesting == o.IsTesting &&
		slices.Equal(c.Files, o.Files)
}
