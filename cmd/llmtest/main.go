package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"

	"github.com/helioworks/support-ai-platform/cmd/mainconfig"
	appconfig "github.com/helioworks/support-ai-platform/internal/config"
	"github.com/helioworks/support-ai-platform/internal/llm"
)

// llmtest sends one canned support conversation to the configured Bedrock
// model so provider credentials and model access can be verified before a
// deploy.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	bedrock := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	var client llm.Client = bedrock
	if cfg.FallbackModelID != "" {
		client = llm.NewFallbackClient(bedrock, llm.WithModel(bedrock, cfg.FallbackModelID), nil)
	}

	req := llm.Request{
		Model: cfg.BedrockModelID,
		System: []string{
			"You are a customer support representative. Keep responses brief and helpful.",
		},
		Messages: []llm.ChatMessage{
			{Role: llm.ChatRoleUser, Content: "Hi, my order arrived damaged. What are my options?"},
			{Role: llm.ChatRoleAssistant, Content: "I'm sorry to hear that. I can offer a replacement or a refund. Which would you prefer?"},
			{Role: llm.ChatRoleUser, Content: "A replacement, please. How long will it take?"},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	}

	fmt.Printf("model: %s\n", cfg.BedrockModelID)
	if cfg.FallbackModelID != "" {
		fmt.Printf("fallback: %s\n", cfg.FallbackModelID)
	}

	start := time.Now()
	resp, err := client.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		log.Fatalf("completion failed: %v", err)
	}

	fmt.Printf("\nresponse (%v):\n%s\n", elapsed.Round(time.Millisecond), resp.Text)
	fmt.Printf("\ntokens: in=%d out=%d, stop=%s\n",
		resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.StopReason)
}
