package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatcherrors "github.com/twitter/dispatch/common/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	c := NewCLI()
	c.wait = func(context.Context) {}
	out := &bytes.Buffer{}
	c.rootCmd.SetOut(out)
	c.SetArgs(args)
	err := c.Exec()
	return out.String(), err
}

func fakeService() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/select", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("group") != "gpu" {
			http.Error(w, "no host available", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"address":"worker2:9100","workerGroup":"gpu"}`))
	})
	mux.HandleFunc("/hosts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"generation":7,"groups":{"gpu":[{"address":"worker2:9100","workerGroup":"gpu","weight":2}],` +
			`"default":[{"address":"worker1:9100","workerGroup":"default","weight":1}]}}`))
	})
	return httptest.NewServer(mux)
}

func TestSelectCmd(t *testing.T) {
	ts := fakeService()
	defer ts.Close()

	out, err := run(t, "select", "--addr", ts.URL, "--group", "gpu", "--count", "2")
	require.Nil(t, err)
	assert.Equal(t, "worker2:9100\nworker2:9100\n", out)

	_, err = run(t, "select", "--addr", ts.URL, "--group", "fpga")
	assert.Equal(t, dispatcherrors.ExitCode(dispatcherrors.NoHostAvailableExitCode), dispatcherrors.ExitCodeOf(err))
}

func TestHostsCmd(t *testing.T) {
	ts := fakeService()
	defer ts.Close()

	out, err := run(t, "hosts", "--addr", ts.URL)
	require.Nil(t, err)
	assert.Equal(t, "generation 7\n"+
		"default\tworker1:9100\tweight: 1.000\tcpu: 0.000\tmem: 0.000\tload: 0.000\n"+
		"gpu\tworker2:9100\tweight: 2.000\tcpu: 0.000\tmem: 0.000\tload: 0.000\n", out)
}

func TestServeCmd(t *testing.T) {
	_, err := run(t, "serve", "--config", `{"HTTPAddr": "localhost:0"}`)
	assert.Nil(t, err)

	_, err = run(t, "serve", "--config", "no.such.preset")
	assert.Equal(t, dispatcherrors.ExitCode(dispatcherrors.ConfigFailureExitCode), dispatcherrors.ExitCodeOf(err))
}

func TestAnnounceNeedsAddr(t *testing.T) {
	_, err := run(t, "announce")
	assert.Equal(t, dispatcherrors.ExitCode(dispatcherrors.UsageFailureExitCode), dispatcherrors.ExitCodeOf(err))
}

func TestBadLogLevel(t *testing.T) {
	_, err := run(t, "--log_level", "loud", "hosts")
	assert.NotNil(t, err)
}

func TestSelectCmdResolvesAddrFromEnv(t *testing.T) {
	ts := fakeService()
	defer ts.Close()
	t.Setenv(serviceAddrEnv, ts.URL)

	out, err := run(t, "select", "--group", "gpu")
	require.Nil(t, err)
	assert.Equal(t, "worker2:9100\n", out)
}
