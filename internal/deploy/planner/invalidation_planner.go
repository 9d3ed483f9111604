package planner

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AllPaths is what "invalidate everything" expands to.
const AllPaths = "/*"

// InvalidationPlanner decides whether the edge cache needs invalidating
// after a deployment and with which paths. It reads the same tree snapshot
// the asset planner read.
type InvalidationPlanner struct {
	root   string
	cfg    InvalidationConfig
	ignore *IgnoreList
}

func NewInvalidationPlanner(root string, cfg InvalidationConfig, ignore *IgnoreList) *InvalidationPlanner {
	return &InvalidationPlanner{
		root:   root,
		cfg:    cfg,
		ignore: ignore,
	}
}

// Plan returns nil when no invalidation is needed: invalidation disabled, or
// an explicitly empty path set. Otherwise it returns the normalized paths
// and a version token derived solely from file contents, so byte-identical
// trees always carry the same token and the CDN collaborator can skip
// redundant invalidations.
func (p *InvalidationPlanner) Plan(ctx context.Context) (*InvalidationRequest, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}

	paths := p.cfg.Paths
	if p.cfg.All {
		paths = []string{AllPaths}
	}
	if len(paths) == 0 {
		return nil, nil
	}

	token, err := p.versionToken(ctx)
	if err != nil {
		return nil, err
	}

	return &InvalidationRequest{
		Paths:        paths,
		VersionToken: token,
		Wait:         p.cfg.Wait,
	}, nil
}

// versionToken streams every file, in lexicographic key order, into one MD5
// digest. MD5 is a change detector here, not a security primitive.
func (p *InvalidationPlanner) versionToken(ctx context.Context) (string, error) {
	files, err := listFiles(p.root, p.ignore)
	if err != nil {
		return "", err
	}

	digest := md5.New()
	for _, key := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := appendFile(digest, filepath.Join(p.root, filepath.FromSlash(key))); err != nil {
			return "", fmt.Errorf("digest %s: %w", key, err)
		}
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
