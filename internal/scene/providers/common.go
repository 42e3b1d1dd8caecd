package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/look-pyrenees/internal/resilience"
	"github.com/i474232898/look-pyrenees/internal/scene"
)

// Provider identifiers accepted as preferred provider.
const (
	CopernicusName  = "cop_dataspace"
	EarthSearchName = "earth_search"
)

// Product types, named as the eodag catalogue names them.
const (
	ProductTypeL2A = "S2_MSI_L2A"
	ProductTypeL1C = "S2_MSI_L1C"
)

var errUnknownProvider = errors.New("unknown provider")

// Config holds the settings shared by every provider.
type Config struct {
	Backoff         resilience.BackoffConfig
	CallTimeout     time.Duration
	DownloadTimeout time.Duration

	CopernicusUsername string
	CopernicusPassword string
}

// New returns the provider registered under name.
func New(name string, client *http.Client, cfg Config) (scene.Provider, error) {
	switch name {
	case CopernicusName:
		return NewCopernicusProvider(client, cfg), nil
	case EarthSearchName:
		return NewEarthSearchProvider(client, cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownProvider, name)
	}
}

// Names lists the registered provider identifiers.
func Names() []string {
	return []string{CopernicusName, EarthSearchName}
}

func httpConfig(client *http.Client, backoff resilience.BackoffConfig, timeout time.Duration) resilience.HTTPClientConfig {
	if backoff.InitialInterval <= 0 {
		backoff = resilience.DefaultBackoff
	}
	return resilience.HTTPClientConfig{Client: client, Backoff: backoff, Timeout: timeout}
}

// fetch saves the response of build at path. Headers and body form one
// attempt under cfg.Timeout, so a transfer that stalls or breaks halfway is
// retried like a failed request.
func fetch(ctx context.Context, cfg resilience.HTTPClientConfig, cb *gobreaker.CircuitBreaker, path string, build func() (*http.Request, error)) error {
	once := cfg
	once.Backoff.MaxRetries = 0
	once.Timeout = 0

	return resilience.Do(ctx, cfg.Backoff, cfg.Timeout, func(ctx context.Context) error {
		resp, err := resilience.DoRequest(ctx, once, cb, build)
		if err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return resilience.Permanent(err)
			}
			return err
		}
		return saveBody(resp, path)
	})
}

// saveBody streams resp into path through a temporary file so that an
// interrupted transfer never leaves a partial file under the final name.
func saveBody(resp *http.Response, path string) (err error) {
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
