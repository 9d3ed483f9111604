package cdn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/openmined/sitedeploy/internal/deploy/planner"
)

const waitTimeout = 10 * time.Minute

// Invalidator submits edge cache invalidations for a CloudFront
// distribution.
type Invalidator struct {
	client         *cloudfront.Client
	distributionID string
}

func NewInvalidator(ctx context.Context, distributionID string) (*Invalidator, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewInvalidatorWithClient(cloudfront.NewFromConfig(awsCfg), distributionID), nil
}

func NewInvalidatorWithClient(client *cloudfront.Client, distributionID string) *Invalidator {
	return &Invalidator{client: client, distributionID: distributionID}
}

// Invalidate submits the request, unless prevToken shows the tree content is
// unchanged since the last deployment. The version token doubles as the
// caller reference, so resubmitting the same deployment is idempotent on the
// CloudFront side as well. Returns true when an invalidation was submitted.
func (iv *Invalidator) Invalidate(ctx context.Context, req *planner.InvalidationRequest, prevToken string) (bool, error) {
	if req == nil {
		return false, nil
	}
	if ShouldSkip(prevToken, req.VersionToken) {
		slog.Info("invalidation skip, content unchanged", "token", req.VersionToken)
		return false, nil
	}

	resp, err := iv.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: &iv.distributionID,
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(req.VersionToken),
			Paths: &types.Paths{
				Items:    req.Paths,
				Quantity: aws.Int32(int32(len(req.Paths))),
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("create invalidation: %w", err)
	}

	id := aws.ToString(resp.Invalidation.Id)
	slog.Info("invalidation submitted", "id", id, "paths", req.Paths, "token", req.VersionToken)

	if req.Wait {
		waiter := cloudfront.NewInvalidationCompletedWaiter(iv.client)
		err := waiter.Wait(ctx, &cloudfront.GetInvalidationInput{
			DistributionId: &iv.distributionID,
			Id:             resp.Invalidation.Id,
		}, waitTimeout)
		if err != nil {
			return true, fmt.Errorf("wait for invalidation %s: %w", id, err)
		}
		slog.Info("invalidation completed", "id", id)
	}

	return true, nil
}

// ShouldSkip reports whether the new token matches the previous deployment's
// token, meaning the edge cache already serves identical content.
func ShouldSkip(prevToken, token string) bool {
	return prevToken != "" && prevToken == token
}
