//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	buildOnce   sync.Once
	binaryPath  string
	buildErr    error
	projectRoot string
)

// RedisContainer wraps a testcontainers Redis instance.
type RedisContainer struct {
	container testcontainers.Container
	addr      string
	client    *redis.Client
}

// setupRedis starts a Redis container and returns connection info.
func setupRedis(ctx context.Context) (*RedisContainer, error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis host: %w", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis port: %w", err)
	}

	addr := fmt.Sprintf("%s:%s", host, port.Port())

	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisContainer{
		container: container,
		addr:      addr,
		client:    client,
	}, nil
}

// Addr returns the Redis address.
func (r *RedisContainer) Addr() string {
	return r.addr
}

// Terminate stops the Redis container.
func (r *RedisContainer) Terminate(ctx context.Context) error {
	if r.client != nil {
		r.client.Close()
	}
	if r.container != nil {
		return r.container.Terminate(ctx)
	}
	return nil
}

// LockHolder returns the holder stored for a table, or "" if none.
func (r *RedisContainer) LockHolder(ctx context.Context, tableID string) (string, error) {
	holder, err := r.client.Get(ctx, "tablelock:table:"+tableID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return holder, err
}

// GetLockTTL returns the TTL of a lock key.
func (r *RedisContainer) GetLockTTL(ctx context.Context, tableID string) (time.Duration, error) {
	return r.client.TTL(ctx, "tablelock:table:"+tableID).Result()
}

// buildTablelock builds the tablelock binary once and returns the path.
func buildTablelock(t *testing.T) string {
	buildOnce.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			buildErr = fmt.Errorf("failed to get working directory: %w", err)
			return
		}

		// Navigate to project root (parent of integration/)
		projectRoot = filepath.Dir(wd)

		binaryPath = filepath.Join(projectRoot, "tablelock-test")
		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/tablelock")
		cmd.Dir = projectRoot
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			buildErr = fmt.Errorf("failed to build tablelock: %w", err)
			return
		}
	})

	if buildErr != nil {
		t.Fatalf("build failed: %v", buildErr)
	}

	return binaryPath
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// writeTestConfig generates a YAML config file and returns the path.
// An empty redisAddr selects the memory backend.
func writeTestConfig(t *testing.T, redisAddr string) string {
	t.Helper()

	backend := "memory"
	if redisAddr != "" {
		backend = "redis"
	}

	configContent := fmt.Sprintf(`server:
  host: 127.0.0.1
  shutdown_timeout: 5s

store:
  backend: %s
  sweep_schedule: "@every 1s"

redis:
  address: "%s"
  key_prefix: "tablelock:"

log:
  level: debug
`, backend, redisAddr)

	configPath := filepath.Join(t.TempDir(), "tablelock.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return configPath
}

// TablelockProcess wraps a tablelock process.
type TablelockProcess struct {
	cmd     *exec.Cmd
	stderr  *os.File
	baseURL string
}

// startTablelock starts a tablelock instance on a free port and waits until it is healthy.
func startTablelock(t *testing.T, ctx context.Context, configPath string) *TablelockProcess {
	t.Helper()

	binaryPath := buildTablelock(t)
	port := freePort(t)

	stderr, err := os.CreateTemp("", "tablelock-stderr-*")
	if err != nil {
		t.Fatalf("failed to create stderr file: %v", err)
	}

	cmd := exec.CommandContext(ctx, binaryPath, "--config", configPath, "--env", "")
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", port))
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stderr.Close()
		t.Fatalf("failed to start tablelock: %v", err)
	}

	p := &TablelockProcess{
		cmd:     cmd,
		stderr:  stderr,
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
	}

	if err := p.waitHealthy(5 * time.Second); err != nil {
		p.Kill()
		t.Fatalf("tablelock did not become healthy: %v\nlogs:\n%s", err, p.Logs())
	}

	return p
}

func (p *TablelockProcess) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(p.baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s/healthz", p.baseURL)
}

// Stop stops the tablelock process gracefully.
func (p *TablelockProcess) Stop() error {
	if p.cmd.Process == nil {
		return nil
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		// Process may have already exited
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- p.cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		p.cmd.Process.Kill()
		return fmt.Errorf("process did not exit gracefully")
	}
}

// Kill forcefully kills the tablelock process.
func (p *TablelockProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Cleanup closes and removes the log file.
func (p *TablelockProcess) Cleanup() {
	if p.stderr != nil {
		name := p.stderr.Name()
		p.stderr.Close()
		os.Remove(name)
	}
}

// Logs returns the stderr output.
func (p *TablelockProcess) Logs() string {
	if p.stderr == nil {
		return ""
	}
	data, _ := os.ReadFile(p.stderr.Name())
	return string(data)
}

// APIResult is a decoded response from the lock API.
type APIResult struct {
	Code     int    `json:"-"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	IsLocked bool   `json:"isLocked"`
}

func (p *TablelockProcess) post(path string, body map[string]any) (APIResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return APIResult{}, err
	}
	resp, err := http.Post(p.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return APIResult{}, err
	}
	defer resp.Body.Close()

	result := APIResult{Code: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}

// Lock calls POST /api/tables/lock.
func (p *TablelockProcess) Lock(tableID, userID string, duration any) (APIResult, error) {
	return p.post("/api/tables/lock", map[string]any{"tableId": tableID, "userId": userID, "duration": duration})
}

// Unlock calls POST /api/tables/unlock.
func (p *TablelockProcess) Unlock(tableID, userID string) (APIResult, error) {
	return p.post("/api/tables/unlock", map[string]any{"tableId": tableID, "userId": userID})
}

// Status calls GET /api/tables/:tableId/status.
func (p *TablelockProcess) Status(tableID string) (APIResult, error) {
	resp, err := http.Get(p.baseURL + "/api/tables/" + tableID + "/status")
	if err != nil {
		return APIResult{}, err
	}
	defer resp.Body.Close()

	result := APIResult{Code: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}
