package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const listXML = `<?xml version="1.0" encoding="UTF-8" ?>
<ASSET_GROUP_LIST_OUTPUT>
  <RESPONSE>
    <DATETIME>2026-10-15T09:00:00Z</DATETIME>
    <ASSET_GROUP_LIST>
      <ASSET_GROUP><ID>1</ID><TITLE><![CDATA[A]]></TITLE><BUSINESS_IMPACT><![CDATA[High]]></BUSINESS_IMPACT></ASSET_GROUP>
      <ASSET_GROUP><ID>2</ID><TITLE><![CDATA[B]]></TITLE><BUSINESS_IMPACT><![CDATA[Minor]]></BUSINESS_IMPACT></ASSET_GROUP>
    </ASSET_GROUP_LIST>
  </RESPONSE>
</ASSET_GROUP_LIST_OUTPUT>`

const editXML = `<?xml version="1.0" encoding="UTF-8" ?>
<SIMPLE_RETURN><RESPONSE><DATETIME>2026-10-15T09:00:01Z</DATETIME><TEXT>Asset Group Updated Successfully</TEXT></RESPONSE></SIMPLE_RETURN>`

// qualysStub answers list and edit calls; the handlers can be swapped per test.
type qualysStub struct {
	mu       sync.Mutex
	lists    int
	edits    []string
	password string
	list     http.HandlerFunc
	edit     http.HandlerFunc
}

func (q *qualysStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, pass, _ := r.BasicAuth()
	q.mu.Lock()
	q.password = pass
	action := r.URL.Query().Get("action")
	switch action {
	case "list":
		q.lists++
	case "edit":
		q.edits = append(q.edits, r.URL.Query().Get("id"))
	}
	q.mu.Unlock()

	switch {
	case action == "list" && q.list != nil:
		q.list(w, r)
	case action == "list":
		fmt.Fprint(w, listXML)
	case action == "edit" && q.edit != nil:
		q.edit(w, r)
	case action == "edit":
		fmt.Fprint(w, editXML)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (q *qualysStub) snapshot() (int, []string, string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lists, append([]string(nil), q.edits...), q.password
}

func newStub(t *testing.T) (*qualysStub, string) {
	t.Helper()
	stub := &qualysStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return stub, srv.URL
}

func testDeps(out *bytes.Buffer) Deps {
	return Deps{
		Stdout: out,
		Stderr: &bytes.Buffer{},
		ReadPassword: func(string) (string, error) {
			return "", errors.New("unexpected prompt")
		},
		LookupEnv: func(string) (string, bool) { return "", false },
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	return exitErr.Code
}

func TestRun_ArgumentValidation(t *testing.T) {
	stub, url := newStub(t)
	cases := []struct {
		name    string
		args    []string
		message string
	}{
		{"missing user", []string{"-p", "pw", "-a", url}, "ERROR: User Not Specified"},
		{"missing password", []string{"-u", "alice", "-a", url}, "ERROR: Password Not Specified"},
		{"missing api url", []string{"-u", "alice", "-p", "pw"}, "ERROR: API URL Not Specified"},
		{"proxy without address", []string{"-u", "alice", "-p", "pw", "-a", url, "-P"}, "ERROR: Proxy enabled but no proxy address specified"},
		{"unknown impact", []string{"-u", "alice", "-p", "pw", "-a", url, "--impact", "Severe"}, "unknown business impact"},
		{"negative interval", []string{"-u", "alice", "-p", "pw", "-a", url, "--every", "-5s"}, "must be positive"},
		{"unknown flag", []string{"--nope"}, "unknown flag"},
		{"missing config file", []string{"-c", filepath.Join(t.TempDir(), "absent.yaml")}, "read config"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			err := Run(context.Background(), c.args, testDeps(out))
			require.Equal(t, ExitUsage, exitCode(t, err))
			require.Contains(t, err.Error(), c.message)
		})
	}
	lists, edits, _ := stub.snapshot()
	require.Zero(t, lists, "no network call before validation passes")
	require.Empty(t, edits)
}

func TestRun_TwoGroups(t *testing.T) {
	stub, url := newStub(t)
	out := &bytes.Buffer{}

	err := Run(context.Background(), []string{"-u", "alice", "-p", "pw", "-a", url + "/"}, testDeps(out))
	require.NoError(t, err)

	lists, edits, password := stub.snapshot()
	require.Equal(t, 1, lists)
	require.Equal(t, []string{"1"}, edits)
	require.Equal(t, "pw", password)
	require.Contains(t, out.String(), "Getting Asset Groups ...Done")
	require.Contains(t, out.String(), "Updating A ... Done")
	require.Contains(t, out.String(), `Updating B ... Skipped (already set to "Minor")`)
}

func TestRun_PasswordPrompt(t *testing.T) {
	stub, url := newStub(t)
	out := &bytes.Buffer{}
	deps := testDeps(out)
	var prompt string
	deps.ReadPassword = func(p string) (string, error) {
		prompt = p
		return "typed-secret", nil
	}

	err := Run(context.Background(), []string{"--user", "alice", "--password", "-", "--api_url", url}, deps)
	require.NoError(t, err)
	require.Equal(t, "Enter password for user alice : ", prompt)
	_, _, password := stub.snapshot()
	require.Equal(t, "typed-secret", password, "the literal '-' is never sent")
}

func TestRun_PasswordPromptFailure(t *testing.T) {
	stub, url := newStub(t)
	err := Run(context.Background(), []string{"-u", "alice", "-p", "-", "-a", url}, testDeps(&bytes.Buffer{}))
	require.Equal(t, ExitUsage, exitCode(t, err))
	lists, _, _ := stub.snapshot()
	require.Zero(t, lists)
}

func TestRun_Simulate(t *testing.T) {
	stub, url := newStub(t)
	out := &bytes.Buffer{}
	err := Run(context.Background(), []string{"-u", "alice", "-p", "pw", "-a", url, "-s"}, testDeps(out))
	require.NoError(t, err)
	_, edits, _ := stub.snapshot()
	require.Empty(t, edits)
	require.Contains(t, out.String(), `Updating A ... Would update (currently "High")`)
}

func TestRun_ListRedirectIsFollowed(t *testing.T) {
	stub, url := newStub(t)
	stub.list = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("hop") == "1" {
			fmt.Fprint(w, listXML)
			return
		}
		w.Header().Set("Location", r.URL.RequestURI()+"&hop=1")
		w.WriteHeader(http.StatusFound)
	}
	err := Run(context.Background(), []string{"-u", "alice", "-p", "pw", "-a", url}, testDeps(&bytes.Buffer{}))
	require.NoError(t, err)
	lists, edits, _ := stub.snapshot()
	require.Equal(t, 2, lists)
	require.Equal(t, []string{"1"}, edits)
}

func TestRun_ListServerErrorExits2(t *testing.T) {
	stub, url := newStub(t)
	stub.list = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	err := Run(context.Background(), []string{"-u", "alice", "-p", "pw", "-a", url}, testDeps(&bytes.Buffer{}))
	require.Equal(t, 2, exitCode(t, err))
	require.Contains(t, err.Error(), "FATAL: Could not make API call to get Asset Group data")
	_, edits, _ := stub.snapshot()
	require.Empty(t, edits)
}

func TestRun_EditRedirectFailureExits3(t *testing.T) {
	stub, url := newStub(t)
	stub.edit = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("hop") == "1" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Location", r.URL.RequestURI()+"&hop=1")
		w.WriteHeader(http.StatusFound)
	}
	out := &bytes.Buffer{}
	err := Run(context.Background(), []string{"-u", "alice", "-p", "pw", "-a", url}, testDeps(out))
	require.Equal(t, 3, exitCode(t, err))
	require.Contains(t, err.Error(), "FATAL: Could not make API call to update Asset Group following redirect")
	require.Contains(t, out.String(), "Response Code : 503", "final edit failure is dumped without --debug")
}

func TestRun_SchemaMismatchExits4(t *testing.T) {
	stub, url := newStub(t)
	stub.list = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, editXML)
	}
	err := Run(context.Background(), []string{"-u", "alice", "-p", "pw", "-a", url}, testDeps(&bytes.Buffer{}))
	require.Equal(t, 4, exitCode(t, err))
}

func TestRun_ConfigFileEnvAndFlagPrecedence(t *testing.T) {
	stub, url := newStub(t)
	cfgPath := filepath.Join(t.TempDir(), "reset.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
qualys:
  api_url: %s
  user: from-file
  password: file-pw
remediation:
  simulate: true
`, url)), 0o600))

	deps := testDeps(&bytes.Buffer{})
	deps.LookupEnv = func(k string) (string, bool) {
		if k == "QUALYS_PASSWORD" {
			return "env-pw", true
		}
		return "", false
	}

	err := Run(context.Background(), []string{"-c", cfgPath, "--simulate=false"}, deps)
	require.NoError(t, err)
	_, edits, password := stub.snapshot()
	require.Equal(t, "env-pw", password)
	require.Equal(t, []string{"1"}, edits, "flag overrides simulate from file")
}

func TestRun_ReportAndMetrics(t *testing.T) {
	_, url := newStub(t)
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.json")
	metricsPath := filepath.Join(dir, "reset.prom")

	err := Run(context.Background(), []string{
		"-u", "alice", "-p", "pw", "-a", url,
		"--report", reportPath, "--metrics-textfile", metricsPath,
	}, testDeps(&bytes.Buffer{}))
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var summary struct {
		RunID  string         `json:"run_id"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(data, &summary))
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, map[string]int{"updated": 1, "skipped": 1}, summary.Counts)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(prom), `reset_asset_groups_groups_total{action="updated"} 1`), string(prom))
}

func TestRun_ContinueOnError(t *testing.T) {
	stub, url := newStub(t)
	stub.list = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Replace(listXML, "<![CDATA[Minor]]>", "<![CDATA[Critical]]>", 1))
	}
	stub.edit = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, editXML)
	}
	err := Run(context.Background(), []string{"-u", "alice", "-p", "pw", "-a", url, "--continue-on-error"}, testDeps(&bytes.Buffer{}))
	require.Equal(t, 2, exitCode(t, err))
	_, edits, _ := stub.snapshot()
	require.Equal(t, []string{"1", "2"}, edits)
}

func TestRun_Periodic(t *testing.T) {
	stub, url := newStub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stub.list = func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		n := stub.lists
		stub.mu.Unlock()
		if n >= 2 {
			cancel()
		}
		fmt.Fprint(w, listXML)
	}

	err := Run(ctx, []string{"-u", "alice", "-p", "pw", "-a", url, "-s", "--every", "10ms"}, testDeps(&bytes.Buffer{}))
	require.NoError(t, err)
	lists, _, _ := stub.snapshot()
	require.GreaterOrEqual(t, lists, 2)
}

func TestRun_Help(t *testing.T) {
	out := &bytes.Buffer{}
	err := Run(context.Background(), []string{"--help"}, testDeps(out))
	require.NoError(t, err)
	require.Contains(t, out.String(), "--api_url")
	require.Contains(t, out.String(), "-P, --proxy_enable")
	require.Contains(t, out.String(), "RESET_ASSET_GROUPS_DATABASE_URL")
	require.Contains(t, out.String(), ".env.local and .env in the working directory")
}

func TestRun_ProxyWithoutScheme(t *testing.T) {
	for _, proxy := range []string{"proxy.corp.example:3128", "10.0.0.1:3128"} {
		t.Run(proxy, func(t *testing.T) {
			stub, url := newStub(t)
			out := &bytes.Buffer{}
			err := Run(context.Background(), []string{"-u", "alice", "-p", "pw", "-a", url, "-P", "-U", proxy, "-s"}, testDeps(out))
			require.NoError(t, err)
			lists, edits, _ := stub.snapshot()
			require.Equal(t, 1, lists)
			require.Empty(t, edits)
		})
	}
}
