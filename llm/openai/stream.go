package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BaSui01/companion/llm"
)

// ReadStream consumes a chat completions SSE body, handing every content
// delta to onChunk and returning the concatenated reply. The stream ends at
// "[DONE]" or EOF.
func ReadStream(ctx context.Context, body io.Reader, onChunk llm.ChunkFunc) (string, error) {
	var reply strings.Builder
	reader := bufio.NewReader(body)
	for {
		if err := ctx.Err(); err != nil {
			return reply.String(), err
		}

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return reply.String(), fmt.Errorf("read stream: %w", err)
		}
		eof := err == io.EOF

		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return reply.String(), nil
			}
			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return reply.String(), fmt.Errorf("decode chunk: %w", err)
			}
			for _, choice := range chunk.Choices {
				if choice.Delta == nil || choice.Delta.Content == "" {
					continue
				}
				reply.WriteString(choice.Delta.Content)
				if onChunk != nil {
					onChunk(choice.Delta.Content)
				}
			}
		}

		if eof {
			return reply.String(), nil
		}
	}
}
