package search

import (
	"fmt"
	"strings"

	"github.com/familyscout/familyscout/internal/api/anthropic"
)

// accumulate drains a streamed response into a final message. Text deltas are
// appended per block index in arrival order; blocks are emitted in index
// order, so the assembled text matches what a non-streaming call would have
// returned.
func accumulate(stream <-chan anthropic.StreamEventResult) (*anthropic.MessagesResponse, error) {
	resp := &anthropic.MessagesResponse{}

	blockTypes := make(map[int]string)
	blockText := make(map[int]*strings.Builder)
	var order []int

	for result := range stream {
		if result.Err != nil {
			return nil, result.Err
		}

		switch result.EventType {
		case "message_start":
			event, err := result.ParseMessageStart()
			if err != nil {
				return nil, fmt.Errorf("parse message_start: %w", err)
			}
			resp.ID = event.Message.ID
			resp.Role = event.Message.Role
			resp.Model = event.Message.Model
			resp.Usage = event.Message.Usage

		case "content_block_start":
			event, err := result.ParseContentBlockStart()
			if err != nil {
				return nil, fmt.Errorf("parse content_block_start: %w", err)
			}
			blockTypes[event.Index] = event.ContentBlock.Type
			blockText[event.Index] = &strings.Builder{}
			blockText[event.Index].WriteString(event.ContentBlock.Text)
			order = append(order, event.Index)

		case "content_block_delta":
			event, err := result.ParseContentBlockDelta()
			if err != nil {
				return nil, fmt.Errorf("parse content_block_delta: %w", err)
			}
			if event.Delta.Type == "text_delta" {
				if blockText[event.Index] == nil {
					blockTypes[event.Index] = "text"
					blockText[event.Index] = &strings.Builder{}
					order = append(order, event.Index)
				}
				blockText[event.Index].WriteString(event.Delta.Text)
			}

		case "message_delta":
			event, err := result.ParseMessageDelta()
			if err != nil {
				return nil, fmt.Errorf("parse message_delta: %w", err)
			}
			if event.Delta.StopReason != "" {
				resp.StopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				resp.Usage.OutputTokens = event.Usage.OutputTokens
			}
		}
	}

	for _, index := range order {
		resp.Content = append(resp.Content, anthropic.ResponseContent{
			Type: blockTypes[index],
			Text: blockText[index].String(),
		})
	}

	return resp, nil
}
