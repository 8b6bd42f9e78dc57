package ngrok

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	ngrok "golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"
)

// ngrok rejects basic auth passwords shorter than this.
const minPasswordLength = 8

type Options struct {
	LocalAddr     string
	Authtoken     string
	Region        string
	Domain        string
	BasicAuthUser string
	BasicAuthPass string
}

type Tunnel struct {
	forwarder ngrok.Forwarder
}

// LocalAddr is the backend address of the control server on the given port.
func LocalAddr(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

func (o Options) validate() (*url.URL, error) {
	if o.LocalAddr == "" {
		return nil, errors.New("ngrok local address is required")
	}
	backend, err := url.Parse(o.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid ngrok local address: %w", err)
	}
	if backend.Scheme == "" || backend.Host == "" {
		return nil, fmt.Errorf("ngrok local address must be an absolute URL, got %q", o.LocalAddr)
	}
	if (o.BasicAuthUser == "") != (o.BasicAuthPass == "") {
		return nil, errors.New("ngrok basic auth needs both a user and a password")
	}
	if o.BasicAuthPass != "" && len(o.BasicAuthPass) < minPasswordLength {
		return nil, fmt.Errorf("ngrok basic auth password must be at least %d characters", minPasswordLength)
	}
	return backend, nil
}

func (o Options) endpointOptions() []config.HTTPEndpointOption {
	httpOpts := make([]config.HTTPEndpointOption, 0, 2)
	if o.Domain != "" {
		httpOpts = append(httpOpts, config.WithDomain(o.Domain))
	}
	if o.BasicAuthUser != "" {
		httpOpts = append(httpOpts, config.WithBasicAuth(o.BasicAuthUser, o.BasicAuthPass))
	}
	return httpOpts
}

func (o Options) connectOptions() []ngrok.ConnectOption {
	connectOpts := make([]ngrok.ConnectOption, 0, 2)
	if o.Authtoken != "" {
		connectOpts = append(connectOpts, ngrok.WithAuthtoken(o.Authtoken))
	} else if os.Getenv("NGROK_AUTHTOKEN") != "" {
		connectOpts = append(connectOpts, ngrok.WithAuthtokenFromEnv())
	}
	if o.Region != "" {
		connectOpts = append(connectOpts, ngrok.WithRegion(o.Region))
	}
	return connectOpts
}

// Start exposes the local control server through an ngrok HTTP endpoint.
func Start(ctx context.Context, opts Options) (*Tunnel, error) {
	backend, err := opts.validate()
	if err != nil {
		return nil, err
	}

	fwd, err := ngrok.ListenAndForward(ctx, backend, config.HTTPEndpoint(opts.endpointOptions()...), opts.connectOptions()...)
	if err != nil {
		return nil, err
	}

	return &Tunnel{forwarder: fwd}, nil
}

func (t *Tunnel) URL() string {
	if t == nil || t.forwarder == nil {
		return ""
	}
	return t.forwarder.URL()
}

func (t *Tunnel) Close() error {
	if t == nil || t.forwarder == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.forwarder.CloseWithContext(ctx)
}
