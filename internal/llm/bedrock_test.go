package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverseAPI struct {
	lastInput *bedrockruntime.ConverseInput
	output    *bedrockruntime.ConverseOutput
	err       error
}

func (f *fakeConverseAPI) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func converseTextOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: text},
				},
			},
		},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(120),
			OutputTokens: aws.Int32(45),
			TotalTokens:  aws.Int32(165),
		},
	}
}

func TestBedrockCompleteMapsRequest(t *testing.T) {
	api := &fakeConverseAPI{output: converseTextOutput("  Happy to help with that.  ")}
	client := NewBedrockClient(api)

	resp, err := client.Complete(context.Background(), Request{
		Model:  "anthropic.claude-3-haiku-20240307-v1:0",
		System: []string{"You are a support rep.", ""},
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "Stay polite."},
			{Role: ChatRoleUser, Content: "Where is my order?"},
			{Role: ChatRoleAssistant, Content: "Let me check."},
			{Role: ChatRoleUser, Content: "   "},
		},
		MaxTokens:   512,
		Temperature: 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "Happy to help with that.", resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int32(120), resp.Usage.InputTokens)
	assert.Equal(t, int32(45), resp.Usage.OutputTokens)
	assert.Equal(t, int32(165), resp.Usage.TotalTokens)

	in := api.lastInput
	require.NotNil(t, in)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(in.ModelId))

	// Blank system blocks are dropped, system-role chat messages are folded in.
	require.Len(t, in.System, 2)
	assert.Equal(t, "You are a support rep.", in.System[0].(*brtypes.SystemContentBlockMemberText).Value)
	assert.Equal(t, "Stay polite.", in.System[1].(*brtypes.SystemContentBlockMemberText).Value)

	// The blank user turn is dropped.
	require.Len(t, in.Messages, 2)
	assert.Equal(t, brtypes.ConversationRoleUser, in.Messages[0].Role)
	assert.Equal(t, brtypes.ConversationRoleAssistant, in.Messages[1].Role)

	require.NotNil(t, in.InferenceConfig)
	assert.Equal(t, int32(512), aws.ToInt32(in.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.7, float64(aws.ToFloat32(in.InferenceConfig.Temperature)), 0.001)
}

func TestBedrockCompleteRequiresModel(t *testing.T) {
	client := NewBedrockClient(&fakeConverseAPI{})

	_, err := client.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model id")
}

func TestBedrockCompleteUnsupportedRole(t *testing.T) {
	client := NewBedrockClient(&fakeConverseAPI{})

	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported role")
}

func TestBedrockCompletePropagatesAPIError(t *testing.T) {
	api := &fakeConverseAPI{err: errors.New("throttled")}
	client := NewBedrockClient(api)

	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	assert.EqualError(t, err, "throttled")
}

func TestBedrockCompleteEmptyMessageOutput(t *testing.T) {
	api := &fakeConverseAPI{output: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{}},
	}}
	client := NewBedrockClient(api)

	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
