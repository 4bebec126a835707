package auth_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and shared helpers for the FinTrack auth end-to-end tests.
 */

const (
	testImageName = "fintrack-auth-test:latest"
	testIssuer    = "fintrack-e2e"
	testPassword  = "correct-horse-battery"
)

// TestMain builds the Docker image once and removes it after the run.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building FinTrack auth Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up FinTrack auth Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/fintrack-auth/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

type containerEnv map[string]string

// relaxedLimits lifts the strict and moderate profiles so tests that make
// many rapid requests are not throttled.
var relaxedLimits = containerEnv{
	"RATELIMIT_STRICT_REQUESTS":   "1000",
	"RATELIMIT_STRICT_BURST":      "1000",
	"RATELIMIT_MODERATE_REQUESTS": "1000",
	"RATELIMIT_MODERATE_BURST":    "1000",
}

// setupAuthContainer starts the auth server and returns a client for it.
// Extra environment is layered over the defaults; pass nil to keep the
// relaxed rate limits.
func setupAuthContainer(t *testing.T, extra containerEnv) *authsdk.Client {
	t.Helper()
	ctx := context.Background()

	env := containerEnv{
		"AUTH_ISSUER":    testIssuer,
		"AUTH_ALGORITHM": "EdDSA",
		"ENV":            "test",
		"LOG_LEVEL":      "info",
		"LOG_FORMAT":     "json",
	}
	if extra == nil {
		extra = relaxedLimits
	}
	maps.Copy(env, extra)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          env,
			WaitingFor: wait.ForHTTP("/readyz").
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return authsdk.NewClient(fmt.Sprintf("http://%s:%s", host, mappedPort.Port()))
}

// registerAndLogin creates a password account and signs it in.
func registerAndLogin(t *testing.T, client *authsdk.Client, email string, rememberMe bool) *authsdk.AuthResponse {
	t.Helper()

	_, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:           email,
		Name:            "E2E User",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err, "register should succeed")

	resp, err := client.Login(t.Context(), email, testPassword, rememberMe)
	require.NoError(t, err, "login should succeed")
	assertAuthResponse(t, resp)
	return resp
}

// requireTwoFactor asserts err asks for a second factor and returns it.
func requireTwoFactor(t *testing.T, err error) *authsdk.TwoFactorRequiredError {
	t.Helper()
	var tfErr *authsdk.TwoFactorRequiredError
	require.True(t, errors.As(err, &tfErr), "expected a two-factor challenge, got %v", err)
	require.NotEmpty(t, tfErr.PendingToken)
	return tfErr
}

func assertAuthResponse(t *testing.T, resp *authsdk.AuthResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType)
	require.Positive(t, resp.ExpiresIn)
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
