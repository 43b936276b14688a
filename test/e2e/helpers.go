//go:build e2e

package e2e

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/docchat/internal/api/handlers"
	"github.com/cloo-solutions/docchat/internal/extract"
	"github.com/cloo-solutions/docchat/internal/openai"
	"github.com/cloo-solutions/docchat/internal/repository"
	"github.com/cloo-solutions/docchat/internal/server"
	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/cloo-solutions/docchat/internal/storage"
	"github.com/cloo-solutions/docchat/internal/testutil"
	"github.com/cloo-solutions/docchat/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
)

const embeddingDims = 32

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	LLM          *fakeOpenAI
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres (pgvector) and RustFS, a fake OpenAI
// endpoint, and the API server wired like docchatd serve.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	llm := newFakeOpenAI()

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, llm.URL(), port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		LLM:          llm,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.LLM != nil {
		e.LLM.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// Signup registers a user and returns its id and API token.
func (e *E2ETestEnv) Signup(email, name string) (string, string) {
	resp, err := e.Post("/auth/signup", map[string]string{"email": email, "name": name}, "")
	if err != nil {
		e.T.Fatalf("signup failed: %v", err)
	}

	var data struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		e.T.Fatalf("failed to parse signup response: %v", err)
	}
	return data.User.ID, data.Token
}

// BuildBinaries builds the docchat and docchatd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "docchat-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"docchat", "docchatd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunDocchat runs the docchat CLI with token, URL and config dir isolated
// to the test.
func (e *E2ETestEnv) RunDocchat(token string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "docchat"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Env = append(os.Environ(),
		"DOCCHAT_API_TOKEN="+token,
		"DOCCHAT_API_URL="+e.ServerURL,
		"XDG_CONFIG_HOME="+e.BinaryDir,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// HTTPError is returned for 4xx/5xx responses.
type HTTPError struct {
	Status int
	Code   string
	Msg    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, e.Msg)
}

func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doJSON(http.MethodGet, path, nil, token)
}

func (e *E2ETestEnv) Post(path string, body interface{}, token string) (*APIResponse, error) {
	return e.doJSON(http.MethodPost, path, body, token)
}

func (e *E2ETestEnv) Patch(path string, body interface{}, token string) (*APIResponse, error) {
	return e.doJSON(http.MethodPatch, path, body, token)
}

func (e *E2ETestEnv) Delete(path, token string) (*APIResponse, error) {
	return e.doJSON(http.MethodDelete, path, nil, token)
}

// Upload posts content as the multipart "file" field.
func (e *E2ETestEnv) Upload(path, fileName string, content []byte, token string) (*APIResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, e.ServerURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.send(req, token)
}

func (e *E2ETestEnv) doJSON(method, path string, body interface{}, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.send(req, token)
}

func (e *E2ETestEnv) send(req *http.Request, token string) (*APIResponse, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := APIResponse{Status: resp.StatusCode}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &HTTPError{Status: resp.StatusCode, Msg: string(respBody)}
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Status: resp.StatusCode, Code: apiResp.Code, Msg: apiResp.Error}
	}

	return &apiResp, nil
}

// DownloadFile fetches a presigned URL without credentials.
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// BuildDOCX packs paragraphs into a minimal Word document.
func BuildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}

	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"_rels/.rels":         `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close docx: %v", err)
	}
	return buf.Bytes()
}

// startServer wires the same components as docchatd serve, with the
// pgvector backend and the fake language model.
func startServer(t *testing.T, pool *pgxpool.Pool, blobs *storage.S3Client, llmURL string, port int) (string, func()) {
	ctx := context.Background()

	index, err := vectorindex.Connect(ctx, vectorindex.NewPgvectorIndex(pool), vectorindex.ConnectConfig{
		Spec: vectorindex.CollectionSpec{
			Name:      "documents",
			Dimension: embeddingDims,
			Distance:  vectorindex.Cosine,
		},
		Attempts: 3,
		Backoff:  200 * time.Millisecond,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to connect vector index: %v", err)
	}

	llm := openai.NewClient(openai.Config{
		APIKey:              "test",
		BaseURL:             llmURL,
		EmbeddingModel:      "test-embedding",
		EmbeddingDimensions: embeddingDims,
		ChatModel:           "test-chat",
	})

	chunker, err := service.NewChunker(service.ChunkConfig{Size: 200, Overlap: 20})
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	txRunner := repository.NewTxRunner(pool)
	userRepo := repository.NewUserRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewDocumentChunkRepository(pool)

	authSvc := service.NewAuthService(userRepo, repository.NewAPITokenRepository(pool), uuidGen)
	userSvc := service.NewUserService(userRepo, authSvc, txRunner, blobs, uuidGen)
	documentSvc := service.NewDocumentService(service.DocumentServiceDeps{
		Validator:   service.NewFileValidator(),
		Blobs:       blobs,
		Ingestion:   service.NewIngestionService(extract.New(extract.NewPDFExtractor("")), chunker, llm, index, txRunner),
		Retriever:   service.NewRetriever(llm, index, chunkRepo),
		Synthesizer: service.NewSynthesizer(llm, nil, service.SynthesizerConfig{Timeout: 10 * time.Second, HistoryWindow: 5}),
		History:     service.NewChatHistory(repository.NewChatHistoryRepository(pool)),
		Documents:   documentRepo,
		Chunks:      chunkRepo,
		Index:       index,
		TxRunner:    txRunner,
		UUIDGen:     uuidGen,

		RetrievalK:    3,
		HistoryWindow: 5,
	})

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:   authSvc,
		HealthHandler:   handlers.NewHealthHandler(index),
		UserHandler:     handlers.NewUserHandler(userSvc),
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// fakeOpenAI answers the embeddings and chat completions endpoints.
// Embeddings are bag-of-words hashes so texts sharing words score close.
type fakeOpenAI struct {
	srv *httptest.Server

	mu      sync.Mutex
	prompts []string
	answer  string
}

func newFakeOpenAI() *fakeOpenAI {
	f := &fakeOpenAI{answer: "The notice period is thirty days."}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /embeddings", f.embeddings)
	mux.HandleFunc("POST /chat/completions", f.chat)
	f.srv = httptest.NewServer(mux)
	return f
}

func (f *fakeOpenAI) URL() string { return f.srv.URL }

func (f *fakeOpenAI) Close() { f.srv.Close() }

// LastPrompt returns the most recent chat prompt.
func (f *fakeOpenAI) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeOpenAI) embeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": hashEmbedding(text)}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
}

func (f *fakeOpenAI) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	for _, m := range req.Messages {
		f.prompts = append(f.prompts, m.Content)
	}
	answer := f.answer
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-e2e",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": answer},
			"finish_reason": "stop",
		}},
	})
}

func hashEmbedding(text string) []float32 {
	vec := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,?!")))
		vec[h.Sum32()%embeddingDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / math.Sqrt(norm))
	}
	return vec
}
