// Package deploy creates the packaged function on AWS Lambda.
package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/flarebyte/lambundle/internal/config"
)

// FunctionMetadata is the function description returned by the host after creation.
type FunctionMetadata struct {
	FunctionName string `yaml:"functionName" json:"functionName"`
	FunctionArn  string `yaml:"functionArn" json:"functionArn"`
	Runtime      string `yaml:"runtime" json:"runtime"`
	Handler      string `yaml:"handler" json:"handler"`
	Role         string `yaml:"role" json:"role"`
	CodeSize     int64  `yaml:"codeSize" json:"codeSize"`
	CodeSha256   string `yaml:"codeSha256" json:"codeSha256"`
	MemorySize   int32  `yaml:"memorySize" json:"memorySize"`
	Timeout      int32  `yaml:"timeout" json:"timeout"`
	Version      string `yaml:"version" json:"version"`
	LastModified string `yaml:"lastModified" json:"lastModified"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	State        string `yaml:"state,omitempty" json:"state,omitempty"`
}

// Deployer creates functions through a LambdaAPI.
type Deployer struct {
	Client LambdaAPI
}

// New returns a Deployer. Create failures are returned as is; retrying is up
// to the caller.
func New(client LambdaAPI) *Deployer {
	return &Deployer{Client: client}
}

// Deploy removes the existing function first when spec.Overwrite is set, then
// creates the function from archive.
func (d *Deployer) Deploy(ctx context.Context, spec config.DeploySpec, handler string, archive []byte) (*FunctionMetadata, error) {
	if spec.Overwrite {
		d.deleteExisting(ctx, spec.Name)
	}

	input := &lambda.CreateFunctionInput{
		FunctionName:  aws.String(spec.Name),
		Role:          aws.String(spec.Role),
		Runtime:       types.Runtime(spec.Runtime),
		Handler:       aws.String(handler),
		Code:          &types.FunctionCode{ZipFile: archive},
		Timeout:       aws.Int32(int32(spec.Timeout)),
		MemorySize:    aws.Int32(int32(spec.Memory)),
		Architectures: []types.Architecture{types.Architecture(spec.Architecture)},
		Publish:       spec.Publish,
	}
	if spec.Description != "" {
		input.Description = aws.String(spec.Description)
	}

	out, err := d.Client.CreateFunction(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create function %s: %w", spec.Name, err)
	}
	return metadataFrom(out), nil
}

// deleteExisting treats a missing function as success. Any other delete
// failure is logged and the create call decides the outcome.
func (d *Deployer) deleteExisting(ctx context.Context, name string) {
	_, err := d.Client.DeleteFunction(ctx, &lambda.DeleteFunctionInput{FunctionName: aws.String(name)})
	if err == nil {
		log.Debug().Str("function", name).Msg("deleted existing function")
		return
	}
	if IsNotFound(err) {
		log.Debug().Str("function", name).Msg("no existing function to delete")
		return
	}
	ev := log.Warn().Err(err).Str("function", name)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		ev = ev.Str("code", apiErr.ErrorCode())
	}
	ev.Msg("delete before overwrite failed, continuing with create")
}

// IsNotFound reports whether err means the function does not exist.
func IsNotFound(err error) bool {
	var nf *types.ResourceNotFoundException
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}

func metadataFrom(out *lambda.CreateFunctionOutput) *FunctionMetadata {
	if out == nil {
		return &FunctionMetadata{}
	}
	return &FunctionMetadata{
		FunctionName: aws.ToString(out.FunctionName),
		FunctionArn:  aws.ToString(out.FunctionArn),
		Runtime:      string(out.Runtime),
		Handler:      aws.ToString(out.Handler),
		Role:         aws.ToString(out.Role),
		CodeSize:     out.CodeSize,
		CodeSha256:   aws.ToString(out.CodeSha256),
		MemorySize:   aws.ToInt32(out.MemorySize),
		Timeout:      aws.ToInt32(out.Timeout),
		Version:      aws.ToString(out.Version),
		LastModified: aws.ToString(out.LastModified),
		Description:  aws.ToString(out.Description),
		State:        string(out.State),
	}
}
