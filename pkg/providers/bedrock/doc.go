// Package bedrock provides an LLM client for AWS Bedrock.
//
// This package implements the llm.Client interface for AWS Bedrock, giving
// unified access to multiple foundation model families including Claude
// (Anthropic), Titan (Amazon), and Llama (Meta) through one consistent API.
//
// Each family has its own wire format. The client detects the family from
// the model identifier and converts requests and responses accordingly.
//
// Key features:
//   - Support for multiple model families (Claude, Titan, Llama)
//   - Automatic format conversion based on model type
//   - Streaming and non-streaming chat completions
//   - Multi-modal support for Claude 3 models
//   - Health checks and error standardization
//   - Regional configuration via the region extra key
//
// Usage:
//
//	client, err := bedrock.NewClient(llm.ClientConfig{
//	    Provider: "bedrock",
//	    Model:    "anthropic.claude-3-sonnet-20240229-v1:0",
//	    Extra: map[string]string{
//	        "region": "us-east-1",
//	    },
//	})
//
// The client uses the AWS SDK's default credential chain for authentication,
// supporting environment variables, IAM roles, profiles, and other standard
// AWS authentication methods.
package bedrock
