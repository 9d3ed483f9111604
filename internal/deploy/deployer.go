package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/openmined/sitedeploy/internal/deploy/cdn"
	"github.com/openmined/sitedeploy/internal/deploy/config"
	"github.com/openmined/sitedeploy/internal/deploy/planner"
	"github.com/openmined/sitedeploy/internal/deploy/sink"
)

// Deployer runs one deployment: plan the site tree, push it to the storage
// sink, then invalidate the edge cache. Planning is pure; nothing remote is
// touched until the whole plan exists.
type Deployer struct {
	cfg         *config.Config
	sink        *sink.S3Sink
	invalidator *cdn.Invalidator
}

func New(ctx context.Context, cfg *config.Config) (*Deployer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s3Sink, err := sink.NewS3Sink(ctx, &sink.S3Config{
		Bucket:   cfg.Bucket,
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
	})
	if err != nil {
		return nil, err
	}

	d := &Deployer{cfg: cfg, sink: s3Sink}

	if cfg.DistributionID != "" {
		invalidator, err := cdn.NewInvalidator(ctx, cfg.DistributionID)
		if err != nil {
			return nil, err
		}
		d.invalidator = invalidator
	}

	return d, nil
}

func (d *Deployer) Deploy(ctx context.Context, dryRun bool) error {
	plan, req, err := Plan(ctx, d.cfg)
	if err != nil {
		return err
	}

	if dryRun {
		printPlan(plan, req)
		return nil
	}

	result, err := d.sink.Push(ctx, plan, d.cfg.Prune)
	if err != nil {
		return fmt.Errorf("push to %s: %w", d.cfg.Bucket, err)
	}
	slog.Info("push done",
		"uploaded", result.Uploaded,
		"skipped", result.Skipped,
		"pruned", result.Pruned,
		"bytes", humanize.Bytes(uint64(result.Bytes)),
	)

	// invalidate only after the upload fully succeeded
	if req == nil {
		return nil
	}
	if d.invalidator == nil {
		slog.Warn("invalidation requested but no distribution_id configured, skipping")
		return nil
	}

	prevToken, err := d.sink.VersionToken(ctx)
	if err != nil {
		return fmt.Errorf("read version token: %w", err)
	}

	submitted, err := d.invalidator.Invalidate(ctx, req, prevToken)
	if err != nil {
		return err
	}
	if submitted {
		if err := d.sink.SetVersionToken(ctx, req.VersionToken); err != nil {
			return fmt.Errorf("store version token: %w", err)
		}
	}

	return nil
}

// Plan produces the sync plan and the optional invalidation request for the
// configured site tree, without touching any remote resource. The asset plan
// and the invalidation digest read the same tree snapshot.
func Plan(ctx context.Context, cfg *config.Config) (planner.SyncPlan, *planner.InvalidationRequest, error) {
	ignore, err := planner.LoadIgnoreList(cfg.SiteDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load ignore list: %w", err)
	}

	plan, err := planner.NewAssetPlanner(cfg.SiteDir, cfg.Rulebook(), cfg.TextEncoding, ignore).Plan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("plan assets: %w", err)
	}
	slog.Info("planned assets", "dir", cfg.SiteDir, "files", len(plan))

	req, err := planner.NewInvalidationPlanner(cfg.SiteDir, cfg.InvalidationConfig(), ignore).Plan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("plan invalidation: %w", err)
	}

	return plan, req, nil
}

func printPlan(plan planner.SyncPlan, req *planner.InvalidationRequest) {
	for _, rec := range plan {
		slog.Info("plan",
			"key", rec.Key,
			"hash", rec.ContentHash[:12],
			"cache", rec.CacheControl,
			"type", rec.ContentType,
		)
	}
	if req != nil {
		slog.Info("plan invalidation", "paths", req.Paths, "token", req.VersionToken, "wait", req.Wait)
	} else {
		slog.Info("plan invalidation", "enabled", false)
	}
}
