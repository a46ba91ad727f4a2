// ABOUTME: Client subcommands: health, proxy-log and probe
// ABOUTME: probe drives a full MCP session with the mcp-go client

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/cmf-gateway/internal/proxy"
)

const clientTimeout = 10 * time.Second

// parseFlags parses args, mapping flag errors to errUsage.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func runHealth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	viaProxy := fs.Bool("proxy", false, "check the proxy instead of the gateway")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := cfg.GatewayURL() + "/health"
	if *viaProxy {
		url = cfg.ProxyURL() + "/health"
	}

	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runProxyLog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("proxy-log", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the raw drain response")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ProxyURL()+proxy.LogPath, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching proxy log: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy log: status %d", resp.StatusCode)
	}

	var out struct {
		OK     bool             `json:"ok"`
		Events []proxy.LogEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding proxy log: %w", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(out.Events) == 0 {
		fmt.Println("no events")
		return nil
	}
	console := proxy.NewConsole(os.Stdout, true)
	for _, ev := range out.Events {
		console.Finished(ev)
	}
	return nil
}

func runProbe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	url := fs.String("url", "", "MCP endpoint (default: the configured gateway)")
	tool := fs.String("tool", "", "tool to call after listing")
	toolArgs := fs.String("args", "{}", "tool arguments as a JSON object")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	endpoint := *url
	if endpoint == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		endpoint = cfg.MCPURL()
	}

	var arguments map[string]any
	if err := json.Unmarshal([]byte(*toolArgs), &arguments); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	c, err := mcpclient.NewStreamableHttpClient(endpoint)
	if err != nil {
		return fmt.Errorf("creating MCP client: %w", err)
	}
	defer c.Close()

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	hello, err := c.Initialize(ctx, mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{
			ProtocolVersion: mcplib.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcplib.Implementation{Name: "cmf-gateway-probe", Version: version},
		},
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	green.Print("▶ ")
	fmt.Printf("%s %s (protocol %s)\n", hello.ServerInfo.Name, hello.ServerInfo.Version, hello.ProtocolVersion)

	tools, err := c.ListTools(ctx, mcplib.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	for _, t := range tools.Tools {
		fmt.Printf("  %-24s ", t.Name)
		gray.Println(t.Description)
	}

	if *tool == "" {
		return nil
	}

	result, err := c.CallTool(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: *tool, Arguments: arguments},
	})
	if err != nil {
		return fmt.Errorf("tools/call %s: %w", *tool, err)
	}
	green.Print("▶ ")
	fmt.Println(*tool)
	for _, content := range result.Content {
		if text, ok := content.(mcplib.TextContent); ok {
			fmt.Println(text.Text)
		}
	}
	return nil
}
