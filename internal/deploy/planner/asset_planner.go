package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/openmined/sitedeploy/internal/deploy/contenttype"
	"github.com/openmined/sitedeploy/internal/deploy/rulebook"
)

// Upper bound on simultaneously open files while hashing.
const maxConcurrentReads = 8

// AssetPlanner walks a build-output tree and produces the SyncPlan the
// storage sink consumes. It performs reads only; skip/overwrite decisions
// belong to the sink.
type AssetPlanner struct {
	root     string
	rules    rulebook.Rulebook
	encoding string
	ignore   *IgnoreList
}

func NewAssetPlanner(root string, rules rulebook.Rulebook, encoding string, ignore *IgnoreList) *AssetPlanner {
	return &AssetPlanner{
		root:     root,
		rules:    rules,
		encoding: encoding,
		ignore:   ignore,
	}
}

// Plan classifies and fingerprints every file under the root. Exactly one
// record per file, ordered by key. Any unreadable file fails the whole plan;
// a partial plan is never returned.
func (p *AssetPlanner) Plan(ctx context.Context) (SyncPlan, error) {
	if err := p.rules.Validate(); err != nil {
		return nil, err
	}

	paths, err := listFiles(p.root, p.ignore)
	if err != nil {
		return nil, err
	}

	classified := p.rules.Classify(paths)

	// Hash concurrently, but slot results by index so the plan keeps the
	// deterministic order from listFiles, not arrival order.
	plan := make(SyncPlan, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentReads)
	for i, key := range paths {
		i, key := i, key
		g.Go(func() error {
			srcPath := filepath.Join(p.root, filepath.FromSlash(key))
			hash, err := hashFileSHA256(srcPath)
			if err != nil {
				return fmt.Errorf("hash %s: %w", key, err)
			}

			rule := classified[key]
			contentType := rule.ContentType
			if contentType == "" {
				contentType = contenttype.ContentType(key, p.encoding)
			}

			plan[i] = &AssetRecord{
				SourcePath:   srcPath,
				Key:          key,
				ContentHash:  hash,
				CacheControl: rule.CacheControl,
				ContentType:  contentType,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return plan, nil
}

func hashFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
