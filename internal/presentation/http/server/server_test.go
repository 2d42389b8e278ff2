package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/application/container"
	"github.com/mikahq/mika-go/internal/infrastructure/email"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/testdb"
)

func TestServerLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app := container.NewContainerWithNotifier(testdb.Open(t), email.NoopNotifier{}, logging.NewDiscardLogger())

	srv := New("0", app)
	require.NoError(t, srv.Listen())
	assert.NotEqual(t, ":0", srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestHeaderTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, headerTimeout(0))
	assert.Equal(t, 5*time.Second, headerTimeout(5*time.Second))
	assert.Equal(t, 10*time.Second, headerTimeout(time.Minute))
}
