package signal

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

// TestInterruptClosesShutdownChannel delivers a signal to the handler and
// waits for the shutdown channel.
func TestInterruptClosesShutdownChannel(t *testing.T) {
	c := newInterceptor()
	go c.mainInterruptHandler()

	require.True(t, c.Alive())
	c.interruptChannel <- os.Interrupt

	select {
	case <-c.ShutdownChannel():
	case <-time.After(testTimeout):
		t.Fatal("shutdown channel not closed")
	}
	require.False(t, c.Alive())

	// Requests after shutdown return immediately.
	c.RequestShutdown()
}

// TestRequestShutdown checks the application initiated path.
func TestRequestShutdown(t *testing.T) {
	c := newInterceptor()
	go c.mainInterruptHandler()

	c.RequestShutdown()

	select {
	case <-c.ShutdownChannel():
	case <-time.After(testTimeout):
		t.Fatal("shutdown channel not closed")
	}
}
