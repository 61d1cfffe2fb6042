package qualys

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/logging"
)

// RequestedWith is sent as X-Requested-With on every call; Qualys rejects
// API requests without it.
const RequestedWith = "ResetAssetGroups/go"

// Credentials are the basic-auth username and password.
type Credentials struct {
	Username string
	Password string
}

// Options configures a Session.
type Options struct {
	BaseURL     string
	Credentials Credentials
	// ProxyURL, when set, is used for https traffic only.
	ProxyURL string
	Debug    bool
	// DebugOut receives response dumps. Defaults to os.Stdout.
	DebugOut io.Writer
	// HTTPClient overrides the transport. Redirect following is always disabled.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Session issues authenticated requests against one Qualys platform.
type Session struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	debug      bool
	debugOut   io.Writer
	log        *logging.Logger
}

// NewSession builds a Session from opts.
func NewSession(opts Options) (*Session, error) {
	base := sanitizeBaseURL(opts.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("qualys api url not configured")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid qualys api url %q", opts.BaseURL)
	}

	var client http.Client
	if opts.HTTPClient != nil {
		client = *opts.HTTPClient
	} else {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.ProxyURL != "" {
			proxy, err := parseProxyURL(opts.ProxyURL)
			if err != nil {
				return nil, err
			}
			transport.Proxy = httpsOnlyProxy(proxy)
		}
		client.Transport = transport
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	out := opts.DebugOut
	if out == nil {
		out = os.Stdout
	}
	return &Session{
		baseURL:    base,
		creds:      opts.Credentials,
		httpClient: &client,
		debug:      opts.Debug,
		debugOut:   out,
		log:        opts.Logger,
	}, nil
}

// BaseURL returns the sanitized API root.
func (s *Session) BaseURL() string { return s.baseURL }

type call struct {
	method string
	url    string
	op     string
	// dumpOnFailure prints the final failed response even without debug.
	dumpOnFailure bool
}

// do runs c with at most one manual redirect hop and returns the 200 body.
func (s *Session) do(ctx context.Context, c call) ([]byte, error) {
	s.log.Debugf("%s %s", c.method, c.url)
	resp, body, err := s.send(ctx, c.method, c.url)
	if err != nil {
		return nil, &APIError{Kind: KindNoRedirect, Op: c.op, Err: err}
	}
	if resp.StatusCode == http.StatusOK {
		if s.debug {
			s.dump(resp, body)
		}
		return body, nil
	}

	target := redirectTarget(resp)
	if target == "" {
		return nil, &APIError{Kind: KindNoRedirect, Op: c.op, StatusCode: resp.StatusCode}
	}
	s.log.Debugf("%s returned %d, following redirect to %s", c.url, resp.StatusCode, target)

	resp, body, err = s.send(ctx, c.method, target)
	if err != nil {
		return nil, &APIError{Kind: KindRedirectFailed, Op: c.op, Err: err}
	}
	if resp.StatusCode == http.StatusOK {
		if s.debug {
			s.dump(resp, body)
		}
		return body, nil
	}
	if s.debug || c.dumpOnFailure {
		s.dump(resp, body)
	}
	return nil, &APIError{Kind: KindRedirectFailed, Op: c.op, StatusCode: resp.StatusCode}
}

func (s *Session) send(ctx context.Context, method, target string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, nil, err
	}
	req.SetBasicAuth(s.creds.Username, s.creds.Password)
	req.Header.Set("X-Requested-With", RequestedWith)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp, body, nil
}

func (s *Session) dump(resp *http.Response, body []byte) {
	fmt.Fprintf(s.debugOut, "Response Code : %d\n", resp.StatusCode)
	fmt.Fprintf(s.debugOut, "Response Headers : \n%s", formatHeaders(resp.Header))
	fmt.Fprintf(s.debugOut, "Response Text : \n%s\n", body)
}

func formatHeaders(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, strings.Join(h[k], ", "))
	}
	return b.String()
}

// redirectTarget returns the absolute Location of a redirect response, or
// "" when resp is not a redirect.
func redirectTarget(resp *http.Response) string {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return ""
	}
	loc := strings.TrimSpace(resp.Header.Get("Location"))
	if loc == "" {
		return ""
	}
	if resp.Request == nil || resp.Request.URL == nil {
		return loc
	}
	u, err := resp.Request.URL.Parse(loc)
	if err != nil {
		return ""
	}
	return u.String()
}

// parseProxyURL accepts host:port as well as a full URL; a missing scheme
// means http.
func parseProxyURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q", raw)
	}
	return u, nil
}

func httpsOnlyProxy(proxy *url.URL) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" {
			return proxy, nil
		}
		return nil, nil
	}
}

func sanitizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	return strings.TrimRight(trimmed, "/")
}
