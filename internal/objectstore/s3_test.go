package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) S3Config {
	return S3Config{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		Bucket:          "shardkv-test",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secretkey",
	}
}

func TestS3StorePutSignsRequestAndSendsBody(t *testing.T) {
	var gotAuth, gotContentSHA string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentSHA = r.Header.Get("X-Amz-Content-Sha256")
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "/shardkv-test/segments/segment-000001.seg", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewS3Store(testConfig(srv.URL), srv.Client())
	err := store.Put(context.Background(), "segments/segment-000001.seg", []byte("payload"))
	require.NoError(t, err)

	assert.Equal(t, "payload", string(gotBody))
	assert.True(t, strings.HasPrefix(gotAuth, sigV4Algorithm+" Credential=AKIDEXAMPLE/"), "Authorization header must carry the SigV4 scheme and access key")
	assert.Contains(t, gotAuth, "SignedHeaders=")
	assert.Contains(t, gotAuth, "Signature=")
	assert.NotEmpty(t, gotContentSHA)
}

func TestS3StoreGetMapsNotFoundStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewS3Store(testConfig(srv.URL), srv.Client())
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StoreHeadParsesMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "42")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", time.Unix(1700000000, 0).UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewS3Store(testConfig(srv.URL), srv.Client())
	meta, err := store.Head(context.Background(), "manifest.json")
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.Size)
	assert.Equal(t, "abc123", meta.ETag)
	assert.Equal(t, int64(1700000000*1000), meta.CreatedAtMs)
}

func TestS3StoreDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewS3Store(testConfig(srv.URL), srv.Client())
	assert.NoError(t, store.Delete(context.Background(), "missing"))
}

func TestS3StoreListParsesXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("list-type"))
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Contents>
    <Key>segments/segment-000001.seg</Key>
    <Size>128</Size>
    <ETag>"deadbeef"</ETag>
    <LastModified>2024-01-01T00:00:00.000Z</LastModified>
  </Contents>
  <NextContinuationToken>tok</NextContinuationToken>
</ListBucketResult>`)
	}))
	defer srv.Close()

	store := NewS3Store(testConfig(srv.URL), srv.Client())
	res, err := store.List(context.Background(), "segments/", "")
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, "segments/segment-000001.seg", res.Objects[0].Key)
	assert.Equal(t, "deadbeef", res.Objects[0].ETag)
	assert.Equal(t, "tok", res.NextToken)
}

func TestSignRequestV4IsDeterministicForFixedTime(t *testing.T) {
	cfg := testConfig("https://s3.us-east-1.amazonaws.com")
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	req1, _ := http.NewRequest(http.MethodGet, cfg.Endpoint+"/shardkv-test/key", nil)
	req1.URL.Host = "s3.us-east-1.amazonaws.com"
	signRequestV4(req1, cfg, nil, fixed)

	req2, _ := http.NewRequest(http.MethodGet, cfg.Endpoint+"/shardkv-test/key", nil)
	req2.URL.Host = "s3.us-east-1.amazonaws.com"
	signRequestV4(req2, cfg, nil, fixed)

	assert.Equal(t, req1.Header.Get("Authorization"), req2.Header.Get("Authorization"))
}
