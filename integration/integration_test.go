//go:build integration

// Package integration runs the client against real subprocess peers.
// The default peer is cat: every line the client writes comes straight
// back, so an outbound notification reappears as an inbound one and an
// outbound request reappears as an inbound request. With an echo handler
// registered for a method, a Call on that method completes end to end
// after two full wire crossings. A peer that exits abnormally exercises
// the crash reporting path instead.
//
// Run with: go test -tags integration ./integration/
package integration

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	omegga "github.com/wagiedev/omegga-sdk-go"
	"github.com/wagiedev/omegga-sdk-go/internal/subprocess"
)

// echoTimeout bounds every exchange with the subprocess.
const echoTimeout = 10 * time.Second

// connectPeerClient spawns the given command and connects a client over
// its stdin and stdout. Tests are skipped when the command is
// unavailable.
func connectPeerClient(t *testing.T, command subprocess.Command, opts ...omegga.Option) (omegga.Client, *subprocess.Transport) {
	t.Helper()

	if _, err := exec.LookPath(command.Name); err != nil {
		t.Skipf("%s not found in PATH", command.Name)
	}

	transport := subprocess.New(omegga.NopLogger(), command)

	opts = append([]omegga.Option{omegga.WithTransport(transport)}, opts...)
	client := omegga.NewClient(opts...)

	ctx, cancel := context.WithTimeout(context.Background(), echoTimeout)
	defer cancel()

	require.NoError(t, client.Connect(ctx))

	// Close tears down the transport, which kills the peer; the
	// transport's read loop reaps it.
	t.Cleanup(func() { _ = client.Close() })

	return client, transport
}

// connectEchoClient connects a client to a cat peer.
func connectEchoClient(t *testing.T, opts ...omegga.Option) (omegga.Client, *subprocess.Transport) {
	t.Helper()

	return connectPeerClient(t, subprocess.Command{Name: "cat"}, opts...)
}
