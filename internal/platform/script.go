package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"autopost-go/internal/agent"
)

// ScriptClient posts videos by invoking an external uploader command. The
// command receives the platform, file path and caption as arguments, the
// credentials via environment variables, and must print a JSON object
// {"success": bool, "url": string, "error": string} on stdout.
type ScriptClient struct {
	platform string
	command  string
	creds    agent.Credentials
	logger   agent.Logger
}

var _ agent.PlatformClient = (*ScriptClient)(nil)

func NewScriptClient(platform, command string, creds agent.Credentials, logger agent.Logger) (*ScriptClient, error) {
	if command == "" {
		return nil, fmt.Errorf("uploader command for %s is empty", platform)
	}
	if logger == nil {
		logger = agent.NewNopLogger()
	}
	return &ScriptClient{platform: platform, command: command, creds: creds, logger: logger}, nil
}

func (c *ScriptClient) Upload(ctx context.Context, filePath, caption string) (agent.UploadResult, error) {
	cmd := exec.CommandContext(ctx, c.command, c.platform, filePath, caption)
	cmd.Env = append(cmd.Environ(),
		"UPLOADER_USERNAME="+c.creds.Username,
		"UPLOADER_PASSWORD="+c.creds.Password,
	)

	output, err := cmd.Output()
	if err != nil {
		return agent.UploadResult{}, fmt.Errorf("uploader command failed: %w", err)
	}

	var result agent.UploadResult
	if err := json.Unmarshal(output, &result); err != nil {
		return agent.UploadResult{}, fmt.Errorf("failed to parse uploader output: %w", err)
	}
	return result, nil
}

// Logout is a no-op: the uploader command holds no session between calls.
func (c *ScriptClient) Logout() error {
	return nil
}
