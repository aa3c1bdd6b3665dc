package deploy

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/flarebyte/lambundle/internal/config"
)

// LambdaAPI is the subset of the Lambda client used for deployment.
type LambdaAPI interface {
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	DeleteFunction(ctx context.Context, params *lambda.DeleteFunctionInput, optFns ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error)
}

// ClientFactory builds a LambdaAPI for the given remote settings.
type ClientFactory func(ctx context.Context, remote config.RemoteConfig) (LambdaAPI, error)

// NewClient loads the default AWS configuration chain and applies the explicit
// region, static credentials, profile and endpoint when they are set.
func NewClient(ctx context.Context, remote config.RemoteConfig) (LambdaAPI, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if remote.Region != "" {
		opts = append(opts, awsconfig.WithRegion(remote.Region))
	}
	if remote.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(remote.Profile))
	}
	if remote.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(remote.AccessKeyID, remote.SecretAccessKey, remote.SessionToken),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return lambda.NewFromConfig(cfg, func(o *lambda.Options) {
		if remote.Endpoint != "" {
			o.BaseEndpoint = aws.String(remote.Endpoint)
		}
	}), nil
}
