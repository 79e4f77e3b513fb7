// Package awsutil loads the shared AWS SDK configuration.
package awsutil

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
)

// Load loads the AWS configuration for the given region, honouring an
// AWS_ENDPOINT_URL override (localstack or a private IoT endpoint).
func Load(ctx context.Context, region string) (aws.Config, error) {
	opts := []func(*awsCfg.LoadOptions) error{awsCfg.WithRegion(region)}
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts = append(opts, awsCfg.WithBaseEndpoint(endpoint))
	}
	return awsCfg.LoadDefaultConfig(ctx, opts...)
}
