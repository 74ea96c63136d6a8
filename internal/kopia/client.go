package kopia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/mitchross/backup-monitor/internal/backend"
)

const backendName = "kopia-fs"

// CommandExecutor interface for running commands (enables testing).
type CommandExecutor interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct{}

func (e *RealExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// Client wraps the kopia CLI to list snapshots as backup objects.
type Client struct {
	repoPath  string
	password  string
	logger    *slog.Logger
	connected bool
	executor  CommandExecutor
}

type snapshotSource struct {
	Host     string `json:"host"`
	UserName string `json:"userName"`
	Path     string `json:"path"`
}

// String renders the source the way kopia prints it: user@host:path.
func (s snapshotSource) String() string {
	return fmt.Sprintf("%s@%s:%s", s.UserName, s.Host, s.Path)
}

type snapshot struct {
	ID        string         `json:"id"`
	Source    snapshotSource `json:"source"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
}

// NewClient creates a new Kopia client.
func NewClient(repoPath, password string, logger *slog.Logger) *Client {
	return NewClientWithExecutor(repoPath, password, logger, &RealExecutor{})
}

// NewClientWithExecutor creates a new Kopia client with a custom executor (for testing).
func NewClientWithExecutor(repoPath, password string, logger *slog.Logger, executor CommandExecutor) *Client {
	return &Client{
		repoPath: repoPath,
		password: password,
		logger:   logger,
		executor: executor,
	}
}

// Connect connects to the kopia repository.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting to kopia repository", "path", c.repoPath)

	output, err := c.executor.Run(ctx, "kopia", "repository", "connect", "filesystem",
		"--path", c.repoPath,
		"--password", c.password)
	if err != nil {
		c.logger.Error("failed to connect to kopia repository", "error", err, "output", string(output))
		return fmt.Errorf("failed to connect to kopia repository: %w", err)
	}

	c.connected = true
	c.logger.Info("connected to kopia repository")
	return nil
}

// ListObjects lists every snapshot whose source (user@host:path) starts
// with prefix. The snapshot end time is used as the modification time.
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]backend.Object, error) {
	if !c.connected {
		if err := c.Connect(ctx); err != nil {
			return nil, &backend.ListError{Backend: backendName, Prefix: prefix, Err: err}
		}
	}

	c.logger.Debug("listing kopia snapshots", "prefix", prefix)

	output, err := c.executor.Run(ctx, "kopia", "snapshot", "list", "--all", "--json")
	if err != nil {
		// Check if it's an exit error (command ran but returned non-zero)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.logger.Error("kopia snapshot list failed",
				"prefix", prefix,
				"error", err,
				"stderr", string(exitErr.Stderr))
		}
		return nil, &backend.ListError{
			Backend: backendName,
			Prefix:  prefix,
			Err:     fmt.Errorf("failed to list snapshots: %w", err),
		}
	}

	var snapshots []snapshot
	if err := json.Unmarshal(output, &snapshots); err != nil {
		c.logger.Error("failed to parse kopia output", "error", err, "output", string(output))
		return nil, &backend.ListError{
			Backend: backendName,
			Prefix:  prefix,
			Err:     fmt.Errorf("failed to parse kopia output: %w", err),
		}
	}

	var objects []backend.Object
	for _, s := range snapshots {
		source := s.Source.String()
		if !strings.HasPrefix(source, prefix) {
			continue
		}

		modified := s.EndTime
		if modified.IsZero() {
			modified = s.StartTime
		}
		objects = append(objects, backend.Object{
			Key:          source + "/" + s.ID,
			LastModified: modified.UTC(),
		})
	}

	c.logger.Debug("kopia snapshot listing complete", "prefix", prefix, "total", len(snapshots), "matched", len(objects))
	return objects, nil
}

// IsConnected returns whether the client is connected to the repository.
func (c *Client) IsConnected() bool {
	return c.connected
}
