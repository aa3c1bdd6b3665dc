package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/flarebyte/lambundle/internal/config"
)

type fakeLambda struct {
	calls     []string
	createIn  *lambda.CreateFunctionInput
	deleteIn  *lambda.DeleteFunctionInput
	deleteErr error
	createErr []error
}

func (f *fakeLambda) CreateFunction(_ context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	f.calls = append(f.calls, "create")
	f.createIn = in
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		if err != nil {
			return nil, err
		}
	}
	return &lambda.CreateFunctionOutput{
		FunctionName: in.FunctionName,
		FunctionArn:  aws.String("arn:aws:lambda:us-east-1:123456789012:function:" + aws.ToString(in.FunctionName)),
		Runtime:      in.Runtime,
		Handler:      in.Handler,
		Role:         in.Role,
		CodeSize:     int64(len(in.Code.ZipFile)),
		CodeSha256:   aws.String("c2hh"),
		MemorySize:   in.MemorySize,
		Timeout:      in.Timeout,
		Version:      aws.String("$LATEST"),
		State:        types.StatePending,
	}, nil
}

func (f *fakeLambda) DeleteFunction(_ context.Context, in *lambda.DeleteFunctionInput, _ ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error) {
	f.calls = append(f.calls, "delete")
	f.deleteIn = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &lambda.DeleteFunctionOutput{}, nil
}

func deploySpec(overwrite bool) config.DeploySpec {
	return config.DeploySpec{
		Name:         "fn",
		Role:         "arn:aws:iam::123456789012:role/lambda",
		Runtime:      "nodejs20.x",
		Timeout:      5,
		Memory:       256,
		Overwrite:    overwrite,
		Architecture: "arm64",
	}
}

func newTestDeployer(f *fakeLambda) *Deployer {
	return New(f)
}

func TestDeploy_CreateOnly(t *testing.T) {
	f := &fakeLambda{}
	meta, err := newTestDeployer(f).Deploy(context.Background(), deploySpec(false), "single-file.handler", []byte("zip"))
	require.NoError(t, err)
	require.Equal(t, []string{"create"}, f.calls)

	in := f.createIn
	require.Equal(t, "fn", aws.ToString(in.FunctionName))
	require.Equal(t, "single-file.handler", aws.ToString(in.Handler))
	require.Equal(t, types.RuntimeNodejs20x, in.Runtime)
	require.Equal(t, int32(256), aws.ToInt32(in.MemorySize))
	require.Equal(t, int32(5), aws.ToInt32(in.Timeout))
	require.Equal(t, []types.Architecture{types.ArchitectureArm64}, in.Architectures)
	require.Equal(t, []byte("zip"), in.Code.ZipFile)
	require.Nil(t, in.Description)

	require.Equal(t, "fn", meta.FunctionName)
	require.Equal(t, "single-file.handler", meta.Handler)
	require.Equal(t, int64(3), meta.CodeSize)
	require.Equal(t, "Pending", meta.State)
}

func TestDeploy_OverwriteDeletesFirst(t *testing.T) {
	f := &fakeLambda{}
	spec := deploySpec(true)
	spec.Description = "lambundle abc1234"
	_, err := newTestDeployer(f).Deploy(context.Background(), spec, "h.handler", []byte("zip"))
	require.NoError(t, err)
	require.Equal(t, []string{"delete", "create"}, f.calls)
	require.Equal(t, "fn", aws.ToString(f.deleteIn.FunctionName))
	require.Equal(t, "lambundle abc1234", aws.ToString(f.createIn.Description))
}

func TestDeploy_OverwriteMissingFunction(t *testing.T) {
	f := &fakeLambda{deleteErr: &types.ResourceNotFoundException{Message: aws.String("Function not found")}}
	meta, err := newTestDeployer(f).Deploy(context.Background(), deploySpec(true), "h.handler", []byte("zip"))
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, []string{"delete", "create"}, f.calls)
}

func TestDeploy_OverwriteDeleteFailureIsNotFatal(t *testing.T) {
	f := &fakeLambda{deleteErr: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}}
	_, err := newTestDeployer(f).Deploy(context.Background(), deploySpec(true), "h.handler", []byte("zip"))
	require.NoError(t, err)
	require.Equal(t, []string{"delete", "create"}, f.calls)
}

func TestDeploy_CreateFailure(t *testing.T) {
	boom := &types.ResourceConflictException{Message: aws.String("Function already exist: fn")}
	f := &fakeLambda{createErr: []error{boom}}
	_, err := newTestDeployer(f).Deploy(context.Background(), deploySpec(false), "h.handler", []byte("zip"))
	require.Error(t, err)
	var conflict *types.ResourceConflictException
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, []string{"create"}, f.calls)
}

func TestDeploy_OverwriteConflictIsNotRetried(t *testing.T) {
	pending := &types.ResourceConflictException{Message: aws.String("pending delete")}
	f := &fakeLambda{createErr: []error{pending, pending, pending}}
	_, err := newTestDeployer(f).Deploy(context.Background(), deploySpec(true), "h.handler", []byte("zip"))
	var conflict *types.ResourceConflictException
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, []string{"delete", "create"}, f.calls)
}

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(&types.ResourceNotFoundException{}))
	require.True(t, IsNotFound(&smithy.GenericAPIError{Code: "ResourceNotFoundException"}))
	require.False(t, IsNotFound(errors.New("other")))
}

func TestNewClient_StaticCredentials(t *testing.T) {
	client, err := NewClient(context.Background(), config.RemoteConfig{
		Region:          "us-east-1",
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		Endpoint:        "http://localhost:4566",
	})
	require.NoError(t, err)
	require.NotNil(t, client)
}
