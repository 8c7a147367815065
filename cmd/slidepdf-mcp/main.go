package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// processRequest mirrors the slidepdf API request model.
type processRequest struct {
	URL     string         `json:"url"`
	Filters map[string]any `json:"filters,omitempty"`
}

// errorResponse mirrors the slidepdf API error body.
type errorResponse struct {
	Detail string `json:"detail"`
}

func main() {
	apiURL := os.Getenv("SLIDEPDF_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}

	s := server.NewMCPServer(
		"slidepdf",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	articleToPDFTool := mcp.NewTool("article_to_pdf",
		mcp.WithDescription("Collect the slide images embedded in a WeChat article and save them as a landscape A4 PDF, one slide per page."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The article URL"),
		),
		mcp.WithString("output_path",
			mcp.Description("Where to write the PDF (default: ./ppt.pdf)"),
		),
		mcp.WithNumber("min_width",
			mcp.Description("Minimum slide width in pixels (default: 600)"),
		),
		mcp.WithNumber("min_height",
			mcp.Description("Minimum slide height in pixels (default: 400)"),
		),
		mcp.WithNumber("trim_leading",
			mcp.Description("Images to drop from the start of the article (default: 2)"),
		),
		mcp.WithNumber("trim_trailing",
			mcp.Description("Images to drop from the end of the article (default: 2)"),
		),
		mcp.WithArray("allowed_domains",
			mcp.Description("Host substrings an image URL must contain (default: [\"mmbiz.qpic.cn\"])"),
		),
	)
	s.AddTool(articleToPDFTool, handleArticleToPDF(apiURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// filtersFrom copies the filter arguments the caller actually set.
func filtersFrom(request mcp.CallToolRequest) map[string]any {
	filters := map[string]any{}
	args := request.GetArguments()
	for _, key := range []string{"min_width", "min_height", "trim_leading", "trim_trailing"} {
		if _, ok := args[key]; ok {
			filters[key] = request.GetInt(key, 0)
		}
	}
	if domains := request.GetStringSlice("allowed_domains", nil); len(domains) > 0 {
		filters["allowed_domains"] = domains
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

func handleArticleToPDF(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 300 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		outputPath := request.GetString("output_path", "ppt.pdf")

		body, err := json.Marshal(processRequest{URL: url, Filters: filtersFrom(request)})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/process", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		if resp.StatusCode != http.StatusOK {
			var e errorResponse
			if err := json.Unmarshal(respBody, &e); err != nil || e.Detail == "" {
				return mcp.NewToolResultError(fmt.Sprintf("conversion failed: HTTP %d", resp.StatusCode)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("[%d] %s", resp.StatusCode, e.Detail)), nil
		}

		if dir := filepath.Dir(outputPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to create %s: %v", dir, err)), nil
			}
		}
		if err := os.WriteFile(outputPath, respBody, 0o644); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to write PDF: %v", err)), nil
		}

		abs, err := filepath.Abs(outputPath)
		if err != nil {
			abs = outputPath
		}
		result := fmt.Sprintf("Saved %d-byte PDF to %s", len(respBody), abs)
		if pages := resp.Header.Get("X-Page-Count"); pages != "" {
			result += fmt.Sprintf(" (%s pages)", pages)
		}
		return mcp.NewToolResultText(result), nil
	}
}
