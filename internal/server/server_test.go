package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"scenesub/internal/config"
	"scenesub/internal/jobs"
	"scenesub/internal/logging"
	"scenesub/internal/subtitles"
	"scenesub/internal/testsupport"
)

type pipelineStub struct {
	mu       sync.Mutex
	cfg      *config.Config
	err      error
	requests []subtitles.GenerateRequest
	sources  [][]byte
}

func (p *pipelineStub) Generate(_ context.Context, req subtitles.GenerateRequest) (subtitles.GenerateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, _ := os.ReadFile(req.SourcePath)
	p.requests = append(p.requests, req)
	p.sources = append(p.sources, data)
	if p.err != nil {
		return subtitles.GenerateResult{}, p.err
	}
	path := filepath.Join(p.cfg.Paths.SubtitleDir, req.BaseName+".srt")
	if err := os.WriteFile(path, []byte("1\n00:00:00,000 --> 00:00:01,000\nhello\n\n"), 0o644); err != nil {
		return subtitles.GenerateResult{}, err
	}
	return subtitles.GenerateResult{
		SubtitlePath:    path,
		SceneCount:      3,
		CueCount:        1,
		Threshold:       req.Threshold,
		ScenesAvailable: true,
	}, nil
}

func (p *pipelineStub) Model() string { return "base" }

func (p *pipelineStub) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*Server, *pipelineStub, *jobs.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	pipeline := &pipelineStub{cfg: cfg}
	return New(cfg, store, pipeline, logging.NewNop()), pipeline, store
}

func uploadRequest(t *testing.T, field, filename string, body []byte, extra map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		h.Set("Content-Type", "video/mp4")
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(body); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp.Error
}

func assertUploadDirEmpty(t *testing.T, srv *Server) {
	t.Helper()
	entries, err := os.ReadDir(srv.cfg.Paths.UploadDir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected upload dir to be empty, found %d entries", len(entries))
	}
}

func TestUploadRejectsMissingVideo(t *testing.T) {
	srv, pipeline, _ := newTestServer(t)

	w := serve(srv, uploadRequest(t, "", "", nil, map[string]string{"other": "x"}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "No video file provided" {
		t.Fatalf("unexpected error message %q", msg)
	}
	if pipeline.calls() != 0 {
		t.Fatal("pipeline should not run")
	}
}

func TestUploadRejectsNonMultipart(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := serve(srv, req)
	if w.Code != http.StatusBadRequest || decodeError(t, w) != "No video file provided" {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestUploadRejectsEmptyFilename(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := serve(srv, uploadRequest(t, "video", "", []byte("data"), nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "No selected file" {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestUploadGeneratesSubtitles(t *testing.T) {
	srv, pipeline, store := newTestServer(t)

	w := serve(srv, uploadRequest(t, "video", "My Clip.mp4", []byte("video-bytes"), map[string]string{"language": "en"}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SubtitleFile != "My_Clip.srt" {
		t.Fatalf("unexpected subtitle file %q", resp.SubtitleFile)
	}
	if resp.JobID == "" || resp.Reused {
		t.Fatalf("unexpected response %#v", resp)
	}

	if pipeline.calls() != 1 {
		t.Fatalf("expected one pipeline call, got %d", pipeline.calls())
	}
	req := pipeline.requests[0]
	if req.BaseName != "My_Clip" || req.Language != "en" || req.Threshold != srv.cfg.Scenes.Threshold {
		t.Fatalf("unexpected generate request %#v", req)
	}
	if string(pipeline.sources[0]) != "video-bytes" {
		t.Fatalf("pipeline saw %q", pipeline.sources[0])
	}

	job, err := store.Get(context.Background(), resp.JobID)
	if err != nil || job == nil {
		t.Fatalf("Get: job=%v err=%v", job, err)
	}
	if job.Status != jobs.StatusCompleted || job.CueCount != 1 || job.SceneCount != 3 {
		t.Fatalf("unexpected stored job %#v", job)
	}
	if job.SourceName != "My_Clip.mp4" || job.Language != "en" || job.ContentHash == "" {
		t.Fatalf("unexpected job inputs %#v", job)
	}
	assertUploadDirEmpty(t, srv)
}

func TestUploadReusesCompletedJob(t *testing.T) {
	srv, pipeline, _ := newTestServer(t)

	first := serve(srv, uploadRequest(t, "video", "clip.mp4", []byte("same"), nil))
	second := serve(srv, uploadRequest(t, "video", "clip.mp4", []byte("same"), nil))
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("unexpected codes %d %d", first.Code, second.Code)
	}
	var a, b uploadResponse
	_ = json.Unmarshal(first.Body.Bytes(), &a)
	_ = json.Unmarshal(second.Body.Bytes(), &b)
	if a.JobID != b.JobID || !b.Reused {
		t.Fatalf("expected reuse of job %s, got %#v", a.JobID, b)
	}
	if pipeline.calls() != 1 {
		t.Fatalf("expected one pipeline call, got %d", pipeline.calls())
	}

	third := serve(srv, uploadRequest(t, "video", "clip.mp4", []byte("same"), map[string]string{"threshold": "55"}))
	var c uploadResponse
	_ = json.Unmarshal(third.Body.Bytes(), &c)
	if c.Reused || c.JobID == a.JobID {
		t.Fatalf("different threshold must not reuse: %#v", c)
	}
	if pipeline.calls() != 2 {
		t.Fatalf("expected second pipeline call, got %d", pipeline.calls())
	}
	assertUploadDirEmpty(t, srv)
}

func TestUploadReuseSkippedWhenSubtitleMissing(t *testing.T) {
	srv, pipeline, _ := newTestServer(t)

	first := serve(srv, uploadRequest(t, "video", "clip.mp4", []byte("same"), nil))
	if first.Code != http.StatusOK {
		t.Fatalf("unexpected code %d", first.Code)
	}
	if err := os.Remove(filepath.Join(srv.cfg.Paths.SubtitleDir, "clip.srt")); err != nil {
		t.Fatal(err)
	}
	serve(srv, uploadRequest(t, "video", "clip.mp4", []byte("same"), nil))
	if pipeline.calls() != 2 {
		t.Fatalf("expected regeneration, got %d calls", pipeline.calls())
	}
}

func TestUploadUsesConfiguredThresholdByDefault(t *testing.T) {
	srv, pipeline, store := newTestServer(t, testsupport.WithThreshold(42))

	w := serve(srv, uploadRequest(t, "video", "clip.mp4", []byte("x"), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp uploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	job, err := store.Get(context.Background(), resp.JobID)
	if err != nil || job == nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Threshold != 42 {
		t.Fatalf("expected threshold 42, got %v", job.Threshold)
	}
	if got := pipeline.requests[0].Threshold; got != 42 {
		t.Fatalf("expected pipeline threshold 42, got %v", got)
	}
}

func TestUploadRejectsInvalidThreshold(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := serve(srv, uploadRequest(t, "video", "clip.mp4", []byte("x"), map[string]string{"threshold": "abc"}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUploadPipelineFailure(t *testing.T) {
	srv, pipeline, store := newTestServer(t)
	pipeline.err = errors.New("transcription exploded")

	w := serve(srv, uploadRequest(t, "video", "clip.mp4", []byte("x"), nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "transcription exploded" {
		t.Fatalf("unexpected error %q", msg)
	}
	assertUploadDirEmpty(t, srv)

	list, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Status != jobs.StatusFailed || list[0].ErrorMessage != "transcription exploded" {
		t.Fatalf("unexpected jobs %#v", list)
	}
}

func TestUploadTooLarge(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.cfg.Server.MaxUploadMiB = 1

	w := serve(srv, uploadRequest(t, "video", "big.mp4", bytes.Repeat([]byte("a"), 2<<20), nil))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestDownloadSubtitle(t *testing.T) {
	srv, _, _ := newTestServer(t)
	content := "1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"
	if err := os.WriteFile(filepath.Join(srv.cfg.Paths.SubtitleDir, "clip.srt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/subtitles/clip.srt", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename=clip.srt" {
		t.Fatalf("unexpected disposition %q", got)
	}
	body, _ := io.ReadAll(w.Body)
	if string(body) != content {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestDownloadRejectsTraversalAndMissing(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{
		"/subtitles/missing.srt",
		"/subtitles/.hidden",
	} {
		w := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
	}

	for _, name := range []string{"../data/jobs.db", `..\jobs.db`, "a/../../jobs.db"} {
		req := httptest.NewRequest(http.MethodGet, "/subtitles/x", nil)
		req.SetPathValue("filename", name)
		w := httptest.NewRecorder()
		srv.handleDownload(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%q: expected 404, got %d", name, w.Code)
		}
	}
}

func TestJobEndpoints(t *testing.T) {
	srv, _, store := newTestServer(t)
	job := testsupport.NewJob(t, store, "clip.mp4", "hash-1")

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list jobListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].ID != job.ID {
		t.Fatalf("unexpected jobs %#v", list.Jobs)
	}

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var one jobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if one.Job.SourceName != "clip.mp4" {
		t.Fatalf("unexpected job %#v", one.Job)
	}

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=-1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Running || resp.Model != "base" || len(resp.Dependencies) != 3 {
		t.Fatalf("unexpected status %#v", resp)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(t, testsupport.WithAPIToken("secret"))

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := serve(srv, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w := serve(srv, req); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := serve(srv, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

func TestStartHoldsInstanceLock(t *testing.T) {
	srv, _, store := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()
	if srv.Addr() == "" {
		t.Fatal("expected bound address")
	}

	second := New(srv.cfg, store, &pipelineStub{cfg: srv.cfg}, logging.NewNop())
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second server to fail acquiring the lock")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStartFailsInterruptedJobs(t *testing.T) {
	srv, _, store := newTestServer(t)
	job := testsupport.NewJob(t, store, "clip.mp4", "h")
	if err := store.MarkRunning(context.Background(), job.ID); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	srv.Stop()

	got, _ := store.Get(context.Background(), job.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("expected interrupted job to be failed, got %q", got.Status)
	}
}

type blockingPipeline struct {
	started   chan struct{}
	cancelled chan struct{}
}

func (p *blockingPipeline) Generate(ctx context.Context, _ subtitles.GenerateRequest) (subtitles.GenerateResult, error) {
	close(p.started)
	<-ctx.Done()
	close(p.cancelled)
	return subtitles.GenerateResult{}, ctx.Err()
}

func (p *blockingPipeline) Model() string { return "base" }

func TestStopCancelsRunningJobsBeforeReleasingLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	pipeline := &blockingPipeline{started: make(chan struct{}), cancelled: make(chan struct{})}
	srv := New(cfg, store, pipeline, logging.NewNop())
	srv.shutdownTimeout = 50 * time.Millisecond

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	req := uploadRequest(t, "video", "clip.mp4", []byte("frames"), nil)
	clientReq, err := http.NewRequest(http.MethodPost, "http://"+srv.Addr()+"/upload", req.Body)
	if err != nil {
		t.Fatal(err)
	}
	clientReq.Header.Set("Content-Type", req.Header.Get("Content-Type"))
	respCh := make(chan int, 1)
	go func() {
		resp, err := http.DefaultClient.Do(clientReq)
		if err != nil {
			respCh <- 0
			return
		}
		resp.Body.Close()
		respCh <- resp.StatusCode
	}()

	select {
	case <-pipeline.started:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline never started")
	}

	srv.Stop()

	select {
	case <-pipeline.cancelled:
	default:
		t.Fatal("pipeline context must be cancelled before Stop returns")
	}
	other := flock.New(cfg.LockPath())
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("expected lock to be free after Stop, got %v %v", locked, err)
	}
	_ = other.Unlock()

	if code := <-respCh; code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for cancelled job, got %d", code)
	}
	list, err := store.List(context.Background(), 0)
	if err != nil || len(list) != 1 || list[0].Status != jobs.StatusFailed {
		t.Fatalf("expected one failed job, got %#v %v", list, err)
	}
}
