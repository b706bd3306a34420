package s3store

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/resilience"
)

type listBucketResult struct {
	XMLName     xml.Name      `xml:"ListBucketResult"`
	Name        string        `xml:"Name"`
	Prefix      string        `xml:"Prefix"`
	KeyCount    int           `xml:"KeyCount"`
	MaxKeys     int           `xml:"MaxKeys"`
	IsTruncated bool          `xml:"IsTruncated"`
	NextToken   string        `xml:"NextContinuationToken,omitempty"`
	Contents    []listedEntry `xml:"Contents"`
}

type listedEntry struct {
	Key  string `xml:"Key"`
	Size int    `xml:"Size"`
}

// fakeS3 serves the path-style subset of the S3 API the store uses.
type fakeS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	failures     int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `<Error><Code>SlowDown</Code><Message>slow down</Message></Error>`)
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	full := bucket + "/" + key

	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[full] = body
		f.contentTypes[full] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		f.list(w, r, bucket)
	case r.Method == http.MethodGet:
		body, ok := f.objects[full]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	case r.Method == http.MethodHead:
		body, ok := f.objects[full]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, r *http.Request, bucket string) {
	prefix := r.URL.Query().Get("prefix")
	maxKeys, _ := strconv.Atoi(r.URL.Query().Get("max-keys"))
	start := r.URL.Query().Get("continuation-token")

	keys := []string{}
	for full := range f.objects {
		key := strings.TrimPrefix(full, bucket+"/")
		if key != full && strings.HasPrefix(key, prefix) && key > start {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := listBucketResult{Name: bucket, Prefix: prefix, MaxKeys: maxKeys}
	if maxKeys > 0 && len(keys) > maxKeys {
		keys = keys[:maxKeys]
		result.IsTruncated = true
		result.NextToken = keys[len(keys)-1]
	}
	for _, key := range keys {
		result.Contents = append(result.Contents, listedEntry{Key: key, Size: len(f.objects[bucket+"/"+key])})
	}
	result.KeyCount = len(result.Contents)

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(result)
}

func newTestStore(t *testing.T, fake *fakeS3, executor *resilience.Executor) *Store {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := NewClient(aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}, ClientOptions{Endpoint: server.URL, UsePathStyle: true})
	return New(client, "raw", executor)
}

func TestPutGetHeadRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := newTestStore(t, fake, nil)
	ctx := context.Background()
	key := "year=2026/month=10/day=19/abc.json"

	if err := store.Put(ctx, key, []byte(`{"id":"abc"}`), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if fake.contentTypes["raw/"+key] != "application/json" {
		t.Fatalf("expected content type to be sent, got %q", fake.contentTypes["raw/"+key])
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"id":"abc"}` {
		t.Fatalf("unexpected body %s", data)
	}

	exists, err := store.Head(ctx, key)
	if err != nil || !exists {
		t.Fatalf("expected object to exist, got %v %v", exists, err)
	}
}

func TestHeadMissingObject(t *testing.T) {
	store := newTestStore(t, newFakeS3(), nil)

	exists, err := store.Head(context.Background(), "year=2026/month=10/day=19/abc.parquet")
	if err != nil {
		t.Fatalf("expected no error for missing object, got %v", err)
	}
	if exists {
		t.Fatalf("expected missing object")
	}
}

func TestGetMissingObjectIsNotFound(t *testing.T) {
	store := newTestStore(t, newFakeS3(), nil)

	_, err := store.Get(context.Background(), "year=2026/month=10/day=19/abc.json")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPaginatesAndHonoursLimit(t *testing.T) {
	fake := newFakeS3()
	for _, key := range []string{"p/a.json", "p/b.json", "p/c.json", "q/d.json"} {
		fake.objects["raw/"+key] = []byte("{}")
	}
	store := newTestStore(t, fake, nil)

	keys, err := store.List(context.Background(), "p/", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "p/a.json" || keys[1] != "p/b.json" {
		t.Fatalf("unexpected limited keys %v", keys)
	}

	all, err := store.List(context.Background(), "p/", 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[2] != "p/c.json" {
		t.Fatalf("unexpected keys %v", all)
	}
}

func TestRetriesServiceUnavailable(t *testing.T) {
	fake := newFakeS3()
	fake.objects["raw/k.json"] = []byte("{}")
	fake.failures = 1
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
	store := newTestStore(t, fake, executor)

	if _, err := store.Get(context.Background(), "k.json"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestClientAppliesEndpointOptions(t *testing.T) {
	client := NewClient(aws.Config{Region: "eu-west-1"}, ClientOptions{Endpoint: "http://localhost:4566", UsePathStyle: true})
	opts := client.Options()
	if aws.ToString(opts.BaseEndpoint) != "http://localhost:4566" || !opts.UsePathStyle {
		t.Fatalf("unexpected options endpoint=%q path_style=%v", aws.ToString(opts.BaseEndpoint), opts.UsePathStyle)
	}
}
