// Package llm registers example commands that complete the pipeline's
// current string value against a hosted language model. Each provider is
// exposed through the narrow SDK subset it needs, so tests can pass mocks
// and services can pass real clients.
package llm

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/liquers/liquers-go/core/command"
	"github.com/liquers/liquers-go/core/executor"
	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/state"
	"github.com/liquers/liquers-go/core/value"
)

// Namespace is the command namespace the LLM commands register under.
const Namespace = "llm"

const defaultMaxTokens = 1024

type (
	// AnthropicMessages is the subset of the Anthropic SDK used by the
	// claude command; *anthropicsdk.MessageService satisfies it.
	AnthropicMessages interface {
		New(ctx context.Context, body anthropicsdk.MessageNewParams, opts ...anthropicopt.RequestOption) (*anthropicsdk.Message, error)
	}

	// OpenAICompletions is the subset of the OpenAI SDK used by the gpt
	// command; the client's Chat.Completions service satisfies it.
	OpenAICompletions interface {
		New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...openaiopt.RequestOption) (*openaisdk.ChatCompletion, error)
	}

	// BedrockRuntime is the subset of the AWS Bedrock runtime used by the
	// bedrock command; *bedrockruntime.Client satisfies it.
	BedrockRuntime interface {
		Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	}

	// Options wires provider clients and their default model identifiers.
	// Providers with a nil client are not registered.
	Options struct {
		Anthropic      AnthropicMessages
		AnthropicModel string
		OpenAI         OpenAICompletions
		OpenAIModel    string
		Bedrock        BedrockRuntime
		BedrockModel   string
	}
)

// Register adds the configured provider commands to reg and exec, all in
// the "llm" namespace, each taking the current string value as the prompt
// and an optional model override parameter.
func Register(reg *command.Registry, exec *executor.Executor, opts Options) error {
	type entry struct {
		name    string
		doc     string
		handler executor.Handler
	}
	var entries []entry
	if opts.Anthropic != nil {
		entries = append(entries, entry{
			name:    "claude",
			doc:     "Completes the input prompt with an Anthropic Claude model.",
			handler: claudeHandler(opts.Anthropic, opts.AnthropicModel),
		})
	}
	if opts.OpenAI != nil {
		entries = append(entries, entry{
			name:    "gpt",
			doc:     "Completes the input prompt with an OpenAI chat model.",
			handler: gptHandler(opts.OpenAI, opts.OpenAIModel),
		})
	}
	if opts.Bedrock != nil {
		entries = append(entries, entry{
			name:    "bedrock",
			doc:     "Completes the input prompt with an AWS Bedrock model.",
			handler: bedrockHandler(opts.Bedrock, opts.BedrockModel),
		})
	}
	for _, e := range entries {
		meta := command.Metadata{
			Namespace: Namespace,
			Name:      e.name,
			Doc:       e.doc,
			Arguments: []command.ArgumentInfo{
				{
					Name:         "model",
					Label:        "model",
					ArgumentType: command.ArgumentTypeString,
					Default:      command.ArgumentDefault{HasValue: true, Value: ""},
				},
			},
		}
		if err := reg.Add(meta); err != nil {
			return err
		}
		key := command.Key{Namespace: Namespace, Name: e.name}
		if err := exec.Register(key, e.handler); err != nil {
			return err
		}
	}
	return nil
}

// promptAndModel extracts the prompt from the input state and the model
// override from the bound arguments, falling back to fallbackModel.
func promptAndModel(in state.State, args executor.BoundArguments, fallbackModel string) (string, string, error) {
	prompt, err := in.Data.TryIntoString()
	if err != nil {
		return "", "", err
	}
	model := fallbackModel
	if m, ok := args.String(0); ok && m != "" {
		model = m
	}
	if model == "" {
		return "", "", lqerror.New(lqerror.KindArgumentMissing, "no model identifier configured or supplied")
	}
	return prompt, model, nil
}

func claudeHandler(client AnthropicMessages, fallbackModel string) executor.Handler {
	return func(ctx context.Context, in state.State, args executor.BoundArguments) (state.State, error) {
		prompt, model, err := promptAndModel(in, args, fallbackModel)
		if err != nil {
			return state.State{}, err
		}
		msg, err := client.New(ctx, anthropicsdk.MessageNewParams{
			Model:     anthropicsdk.Model(model),
			MaxTokens: defaultMaxTokens,
			Messages: []anthropicsdk.MessageParam{
				anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return state.State{}, lqerror.NewWithCause(lqerror.KindGeneral, "anthropic completion failed", err)
		}
		var b strings.Builder
		for _, block := range msg.Content {
			b.WriteString(block.Text)
		}
		return in.WithData(value.FromString(b.String())), nil
	}
}

func gptHandler(client OpenAICompletions, fallbackModel string) executor.Handler {
	return func(ctx context.Context, in state.State, args executor.BoundArguments) (state.State, error) {
		prompt, model, err := promptAndModel(in, args, fallbackModel)
		if err != nil {
			return state.State{}, err
		}
		resp, err := client.New(ctx, openaisdk.ChatCompletionNewParams{
			Model: openaisdk.ChatModel(model),
			Messages: []openaisdk.ChatCompletionMessageParamUnion{
				openaisdk.UserMessage(prompt),
			},
		})
		if err != nil {
			return state.State{}, lqerror.NewWithCause(lqerror.KindGeneral, "openai completion failed", err)
		}
		if len(resp.Choices) == 0 {
			return state.State{}, lqerror.New(lqerror.KindGeneral, "openai completion returned no choices")
		}
		return in.WithData(value.FromString(resp.Choices[0].Message.Content)), nil
	}
}

func bedrockHandler(client BedrockRuntime, fallbackModel string) executor.Handler {
	return func(ctx context.Context, in state.State, args executor.BoundArguments) (state.State, error) {
		prompt, model, err := promptAndModel(in, args, fallbackModel)
		if err != nil {
			return state.State{}, err
		}
		out, err := client.Converse(ctx, &bedrockruntime.ConverseInput{
			ModelId: aws.String(model),
			Messages: []brtypes.Message{
				{
					Role:    brtypes.ConversationRoleUser,
					Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
				},
			},
		})
		if err != nil {
			return state.State{}, lqerror.NewWithCause(lqerror.KindGeneral, "bedrock completion failed", err)
		}
		msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
		if !ok {
			return state.State{}, lqerror.New(lqerror.KindGeneral, "bedrock response has no message output")
		}
		var b strings.Builder
		for _, block := range msg.Value.Content {
			if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
				b.WriteString(text.Value)
			}
		}
		return in.WithData(value.FromString(b.String())), nil
	}
}
