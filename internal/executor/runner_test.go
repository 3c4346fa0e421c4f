package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schema-harvester/internal/artifact"
	"schema-harvester/internal/config"
	"schema-harvester/internal/fetch"
	"schema-harvester/internal/generator"
	"schema-harvester/internal/logger"
	"schema-harvester/internal/types"
)

const holidayEnvelope = `{"id":1,"jsonrpc":"2.0","result":{"statusCode":200,"status":true,"data":[{"id":1,"name":"New Year"},{"id":2,"name":"Labor Day"}]}}`

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/holiday/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, holidayEnvelope)
	})
	mux.HandleFunc("/broken/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":1,"jsonrpc":"2.0","result":{"statusCode":200,"status":true}}`)
	})
	mux.HandleFunc("/holiday/create", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Spring Day", r.FormValue("name"))
		_, _ = io.WriteString(w, `[{"error":"invalid iban"}]`)
	})
	mux.HandleFunc("/bank/create", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":7,"name":"Main"}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	root   string
	layout artifact.Layout
	runLog *logger.Logger
	creds  *config.Credentials
}

func newHarness(t *testing.T, srv *httptest.Server) *harness {
	t.Helper()
	root := t.TempDir()
	runLog, err := logger.NewLogger(filepath.Join(root, "logs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runLog.Close() })

	return &harness{
		root: root,
		layout: artifact.Layout{
			JSONDir:    filepath.Join(root, "json"),
			SchemasDir: filepath.Join(root, "schemas"),
			TypesDir:   filepath.Join(root, "types"),
		},
		runLog: runLog,
		creds: &config.Credentials{
			APIRootURL:       srv.URL,
			APIKey:           "key",
			APIKeyHeaderName: "X-Api-Key",
			BearerToken:      "token",
			SessionID:        "sid",
		},
	}
}

func (h *harness) deps() Dependencies {
	gen := generator.NewInferGenerator()
	return Dependencies{
		Fetcher:    fetch.NewClient(fetch.Config{Timeout: 5 * time.Second}),
		Writer:     artifact.NewFilesystemWriter(),
		Layout:     h.layout,
		Generator:  gen,
		Documenter: gen,
		RunLog:     h.runLog,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func catalogEndpoints() []types.Endpoint {
	return []types.Endpoint{
		{
			Name:              "holiday",
			URL:               "holiday/list",
			Method:            "GET",
			CreateURL:         "holiday/create",
			CreateRequestBody: map[string]any{"name": "Spring Day", "date": "2026-03-21"},
		},
		{Name: "broken", URL: "broken/list", Method: "GET"},
		{Name: "nourl", Method: "GET"},
	}
}

func outcomeFor(t *testing.T, s *Summary, name string, mode types.Mode) Outcome {
	t.Helper()
	for _, o := range s.Outcomes {
		if o.Endpoint == name && o.Mode == mode {
			return o
		}
	}
	t.Fatalf("no outcome for %s/%s", name, mode)
	return Outcome{}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// recordingFetcher remembers the URL of every call it forwards.
type recordingFetcher struct {
	next Fetcher

	mu   sync.Mutex
	urls []string
}

func (f *recordingFetcher) Fetch(ctx context.Context, call types.Call, url string, headers http.Header) (*fetch.Result, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return f.next.Fetch(ctx, call, url, headers)
}

func TestRunListMode(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	deps := h.deps()
	fetcher := &recordingFetcher{next: deps.Fetcher}
	deps.Fetcher = fetcher

	var states []State
	orch := NewOrchestrator(Options{
		Mode:          types.ModeList,
		OnStateChange: func(s State) { states = append(states, s) },
	}, deps)

	summary, err := orch.Run(context.Background(), h.creds, catalogEndpoints())
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 3)

	assert.Equal(t, []State{StateResettingLogs, StateRunning, StateSummarizing, StateDone}, states)
	assert.Equal(t, StateDone, orch.State())
	assert.NotEmpty(t, summary.RunID)

	holiday := outcomeFor(t, summary, "holiday", types.ModeList)
	assert.Equal(t, StatusSuccess, holiday.Status)
	assert.Equal(t, 2, holiday.Items)
	assert.Equal(t, http.StatusOK, holiday.StatusCode)

	assert.Equal(t, `[{"id":1,"name":"New Year"},{"id":2,"name":"Labor Day"}]`, readFile(t, h.layout.Data("holiday")))
	assert.Contains(t, readFile(t, h.layout.Raw("holiday")), "\n  \"jsonrpc\": \"2.0\",")
	assert.Contains(t, readFile(t, h.layout.Schema("holiday")), "export const HolidaySchema")
	assert.Contains(t, readFile(t, h.layout.Interface("holiday")), "export interface HolidayElement")
	assert.FileExists(t, h.layout.JSONSchema("holiday"))
	assert.Len(t, holiday.Artifacts, 5)

	broken := outcomeFor(t, summary, "broken", types.ModeList)
	assert.Equal(t, StatusFailed, broken.Status)
	assert.Equal(t, types.KindValidation, broken.ErrorKind)
	assert.FileExists(t, h.layout.Raw("broken"))
	assert.NoFileExists(t, h.layout.Data("broken"))
	assert.NoFileExists(t, h.layout.Schema("broken"))

	nourl := outcomeFor(t, summary, "nourl", types.ModeList)
	assert.Equal(t, StatusSkipped, nourl.Status)
	assert.Equal(t, types.KindConfiguration, nourl.ErrorKind)
	assert.Equal(t, "no url found for endpoint: nourl", nourl.Message)
	assert.Empty(t, nourl.Artifacts)
	assert.NoDirExists(t, h.layout.EndpointDir("nourl"))
	assert.ElementsMatch(t, []string{srv.URL + "/holiday/list", srv.URL + "/broken/list"}, fetcher.urls)

	assert.Equal(t, logger.Counts{Info: 1, Error: 2}, summary.Counts)
	assert.Equal(t, []string{
		filepath.Join(h.runLog.Dir(), "generate.log"),
		filepath.Join(h.runLog.Dir(), "generate.error.log"),
	}, summary.LogFiles)

	errLog := readFile(t, filepath.Join(h.runLog.Dir(), "generate.error.log"))
	assert.Contains(t, errLog, "source: executor.list.validate")
	assert.Contains(t, errLog, "result.data: required")
	assert.Contains(t, errLog, "source: executor.list.catalog")
}

func TestRunIsIdempotent(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	read := func() map[string]string {
		out := map[string]string{}
		for _, p := range []string{
			h.layout.Raw("holiday"),
			h.layout.Data("holiday"),
			h.layout.Schema("holiday"),
			h.layout.Interface("holiday"),
			h.layout.JSONSchema("holiday"),
		} {
			out[p] = readFile(t, p)
		}
		return out
	}

	first, err := NewOrchestrator(Options{}, h.deps()).Run(context.Background(), h.creds, catalogEndpoints())
	require.NoError(t, err)
	before := read()

	second, err := NewOrchestrator(Options{}, h.deps()).Run(context.Background(), h.creds, catalogEndpoints())
	require.NoError(t, err)

	assert.Equal(t, before, read())
	assert.Equal(t, first.Counts, second.Counts)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunKeepLogsAccumulates(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)
	eps := catalogEndpoints()[:2]

	_, err := NewOrchestrator(Options{}, h.deps()).Run(context.Background(), h.creds, eps)
	require.NoError(t, err)
	require.NoError(t, h.runLog.Close())

	// A later invocation opens its own logger on the same directory.
	fresh, err := logger.NewLogger(h.runLog.Dir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fresh.Close() })
	deps := h.deps()
	deps.RunLog = fresh

	summary, err := NewOrchestrator(Options{KeepLogs: true}, deps).Run(context.Background(), h.creds, eps[:1])
	require.NoError(t, err)

	assert.Equal(t, logger.Counts{Info: 2, Error: 1}, summary.Counts)
	assert.Equal(t, []string{
		filepath.Join(h.runLog.Dir(), "generate.log"),
		filepath.Join(h.runLog.Dir(), "generate.error.log"),
	}, summary.LogFiles)

	counts, files, err := logger.ReadStats(h.runLog.Dir())
	require.NoError(t, err)
	assert.Equal(t, summary.Counts, counts)
	assert.Equal(t, summary.LogFiles, files)
	assert.Equal(t, 2, strings.Count(readFile(t, filepath.Join(h.runLog.Dir(), "generate.log")), "] holiday\n"))
}

func TestRegenerateFromStoredResponses(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	_, err := NewOrchestrator(Options{}, h.deps()).Run(context.Background(), h.creds, catalogEndpoints())
	require.NoError(t, err)
	require.NoError(t, os.Remove(h.layout.Data("holiday")))
	require.NoError(t, os.Remove(h.layout.Schema("holiday")))

	deps := h.deps()
	fetcher := &recordingFetcher{next: deps.Fetcher}
	deps.Fetcher = fetcher

	summary, err := NewOrchestrator(Options{}, deps).Regenerate(context.Background(), []string{"holiday", "broken", "missing"})
	require.NoError(t, err)
	assert.Empty(t, fetcher.urls)
	assert.Equal(t, types.ModeList, summary.Mode)

	holiday := outcomeFor(t, summary, "holiday", types.ModeList)
	assert.Equal(t, StatusSuccess, holiday.Status)
	assert.Equal(t, 2, holiday.Items)
	assert.Equal(t, http.StatusOK, holiday.StatusCode)
	assert.Equal(t, `[{"id":1,"name":"New Year"},{"id":2,"name":"Labor Day"}]`, readFile(t, h.layout.Data("holiday")))
	assert.Contains(t, readFile(t, h.layout.Schema("holiday")), "export const HolidaySchema")
	assert.Len(t, holiday.Artifacts, 4)

	broken := outcomeFor(t, summary, "broken", types.ModeList)
	assert.Equal(t, types.KindValidation, broken.ErrorKind)

	missing := outcomeFor(t, summary, "missing", types.ModeList)
	assert.Equal(t, StatusFailed, missing.Status)
	assert.Equal(t, types.KindIO, missing.ErrorKind)

	assert.Equal(t, logger.Counts{Info: 1, Error: 2}, summary.Counts)
	errLog := readFile(t, filepath.Join(h.runLog.Dir(), "generate.error.log"))
	assert.Contains(t, errLog, "source: executor.list.read")
}

func TestRunCreateRejected(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	summary, err := NewOrchestrator(Options{Mode: types.ModeCreate}, h.deps()).
		Run(context.Background(), h.creds, catalogEndpoints()[:1])
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)

	out := summary.Outcomes[0]
	assert.Equal(t, types.ModeCreate, out.Mode)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, types.KindRejected, out.ErrorKind)
	assert.Equal(t, "rejected: holiday: invalid iban", out.Message)

	assert.Contains(t, readFile(t, h.layout.RawCreate("holiday")), `"error": "invalid iban"`)
	assert.NoFileExists(t, h.layout.DataCreate("holiday"))
	assert.Contains(t, readFile(t, h.layout.CreateBodySchema("holiday")), "export const HolidayCreateBodySchema")

	assert.Equal(t, logger.Counts{Error: 1}, summary.Counts)
	errLog := readFile(t, filepath.Join(h.runLog.Dir(), "generate.error.log"))
	assert.Contains(t, errLog, "source: executor.create.create")
	assert.Contains(t, errLog, "invalid iban")
}

func TestRunCreateSuccess(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	eps := []types.Endpoint{{
		Name:              "bank",
		URL:               "bank/list",
		CreateURL:         "bank/create",
		CreateRequestBody: map[string]any{"name": "Main", "iban": "DE00"},
	}}
	summary, err := NewOrchestrator(Options{Mode: types.ModeCreate}, h.deps()).Run(context.Background(), h.creds, eps)
	require.NoError(t, err)

	out := outcomeFor(t, summary, "bank", types.ModeCreate)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 1, out.Items)
	assert.Equal(t, "{\n  \"id\": 7,\n  \"name\": \"Main\"\n}", readFile(t, h.layout.DataCreate("bank")))
	assert.Equal(t, logger.Counts{Info: 1}, summary.Counts)
}

func TestRunAllPlansDeclaredCreates(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	summary, err := NewOrchestrator(Options{Mode: types.ModeAll}, h.deps()).
		Run(context.Background(), h.creds, catalogEndpoints())
	require.NoError(t, err)

	// three list calls plus the single declared create
	require.Len(t, summary.Outcomes, 4)
	assert.Equal(t, types.ModeCreate, summary.Outcomes[1].Mode)
	assert.Equal(t, "holiday", summary.Outcomes[1].Endpoint)
	assert.Equal(t, summary.Counts.Total(), len(summary.Outcomes))
}

func TestRunCreateModeWithoutCreateURL(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	summary, err := NewOrchestrator(Options{Mode: types.ModeCreate}, h.deps()).
		Run(context.Background(), h.creds, catalogEndpoints()[1:2])
	require.NoError(t, err)

	out := summary.Outcomes[0]
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, "no createUrl found for endpoint: broken", out.Message)
	assert.Equal(t, logger.Counts{Error: 1}, summary.Counts)
}

func TestRunRequiresCredentials(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	orch := NewOrchestrator(Options{}, h.deps())
	_, err := orch.Run(context.Background(), nil, catalogEndpoints())
	require.Error(t, err)
	assert.True(t, types.IsFatal(err))
	assert.Equal(t, StateNotStarted, orch.State())
}

func TestRunCanceled(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, concurrent := range []bool{false, true} {
		summary, err := NewOrchestrator(Options{Concurrent: concurrent}, h.deps()).Run(ctx, h.creds, catalogEndpoints())
		require.NoError(t, err)
		require.Len(t, summary.Outcomes, 3)
		for _, o := range summary.Outcomes {
			assert.Equal(t, StatusSkipped, o.Status)
			assert.Empty(t, o.ErrorKind)
		}
		assert.Equal(t, logger.Counts{}, summary.Counts)
	}
}

func TestRunConcurrentRespectsWorkerLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = io.WriteString(w, holidayEnvelope)
	}))
	defer srv.Close()
	h := newHarness(t, srv)

	var eps []types.Endpoint
	for i := 0; i < 10; i++ {
		eps = append(eps, types.Endpoint{Name: fmt.Sprintf("ep%d", i), URL: fmt.Sprintf("ep%d/list", i)})
	}

	summary, err := NewOrchestrator(Options{Concurrent: true, MaxWorkers: 3}, h.deps()).
		Run(context.Background(), h.creds, eps)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Tally(StatusSuccess))
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, logger.Counts{Info: 10}, summary.Counts)
	for i, o := range summary.Outcomes {
		assert.Equal(t, fmt.Sprintf("ep%d", i), o.Endpoint)
	}
}

type failingMirror struct {
	mu   sync.Mutex
	keys []string
}

func (m *failingMirror) Put(ctx context.Context, runID, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, path)
	return errors.New("bucket unavailable")
}

type captureRecorder struct {
	summary *Summary
	ctxErr  error
}

func (r *captureRecorder) Record(ctx context.Context, s *Summary) error {
	r.summary = s
	r.ctxErr = ctx.Err()
	return nil
}

func TestRunMirrorFailureKeepsEndpointAlive(t *testing.T) {
	srv := newAPI(t)
	h := newHarness(t, srv)

	mirror := &failingMirror{}
	rec := &captureRecorder{}
	deps := h.deps()
	deps.Mirror = mirror
	deps.Recorders = []Recorder{rec}

	summary, err := NewOrchestrator(Options{}, deps).Run(context.Background(), h.creds, catalogEndpoints()[:1])
	require.NoError(t, err)

	out := summary.Outcomes[0]
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Len(t, out.MirrorErrors, len(out.Artifacts))
	assert.True(t, strings.HasSuffix(out.MirrorErrors[0], "bucket unavailable"))
	assert.Len(t, mirror.keys, 5)
	assert.Equal(t, logger.Counts{Info: 1}, summary.Counts)

	require.NotNil(t, rec.summary)
	assert.Same(t, summary, rec.summary)
	assert.NoError(t, rec.ctxErr)
}

func TestRunFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"boom"}`)
	}))
	defer srv.Close()
	h := newHarness(t, srv)

	summary, err := NewOrchestrator(Options{}, h.deps()).Run(context.Background(), h.creds, catalogEndpoints()[:1])
	require.NoError(t, err)

	out := summary.Outcomes[0]
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, types.KindTransport, out.ErrorKind)
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.Contains(t, readFile(t, h.layout.Raw("holiday")), `"message": "boom"`)
	assert.NoFileExists(t, h.layout.Data("holiday"))
}
