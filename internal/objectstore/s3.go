package objectstore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// S3Config names an S3-compatible endpoint. No S3 SDK appears anywhere
// in the retrieval pack, so requests are signed by hand with AWS
// Signature Version 4 — the same "write the small HTTP client yourself
// rather than pull in an unwired dependency" approach
// ppriyankuu-godkv/internal/cluster uses for its peer-replication
// calls.
type S3Config struct {
	Endpoint        string // e.g. https://s3.us-east-1.amazonaws.com
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store is a Store backed by an S3-compatible bucket.
type S3Store struct {
	cfg    S3Config
	client *http.Client
}

func NewS3Store(cfg S3Config, client *http.Client) *S3Store {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &S3Store{cfg: cfg, client: client}
}

func (s *S3Store) objectURL(key string) string {
	return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + strings.TrimLeft(key, "/")
}

func (s *S3Store) do(ctx context.Context, method, key string, query url.Values, body []byte) (*http.Response, error) {
	u := s.objectURL(key)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	signRequestV4(req, s.cfg, body, time.Now().UTC())
	return s.client.Do(req)
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	resp, err := s.do(ctx, http.MethodPut, key, nil, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusErr(resp)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, key, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusErr(resp)
	}
	return io.ReadAll(resp.Body)
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	resp, err := s.do(ctx, http.MethodDelete, key, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// S3 returns 204 whether or not the key existed, matching the
	// "delete of a non-existent key is not an error" contract directly.
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return statusErr(resp)
	}
	return nil
}

func (s *S3Store) Head(ctx context.Context, key string) (ObjectMeta, error) {
	resp, err := s.do(ctx, http.MethodHead, key, nil, nil)
	if err != nil {
		return ObjectMeta{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ObjectMeta{}, ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return ObjectMeta{}, statusErr(resp)
	}
	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	lastModified, _ := time.Parse(http.TimeFormat, resp.Header.Get("Last-Modified"))
	return ObjectMeta{
		Key:         key,
		Size:        size,
		CreatedAtMs: lastModified.UnixMilli(),
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
	}, nil
}

func (s *S3Store) Rename(ctx context.Context, from, to string) error {
	data, err := s.Get(ctx, from)
	if err != nil {
		return err
	}
	// S3 has no native rename: PUT the destination (making it visible)
	// before DELETE-ing the source, honoring the "destination visible
	// before source disappears" half of the rename contract even though
	// it isn't a single atomic operation on the wire.
	if err := s.Put(ctx, to, data); err != nil {
		return err
	}
	return s.Delete(ctx, from)
}

// listBucketResult mirrors the subset of S3's ListObjectsV2 XML
// response this store actually reads.
type listBucketResult struct {
	Contents              []listEntry `xml:"Contents"`
	NextContinuationToken string      `xml:"NextContinuationToken"`
}

type listEntry struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

func (s *S3Store) List(ctx context.Context, prefix, token string) (ListResult, error) {
	query := url.Values{"list-type": {"2"}, "prefix": {prefix}}
	if token != "" {
		query.Set("continuation-token", token)
	}
	resp, err := s.do(ctx, http.MethodGet, "", query, nil)
	if err != nil {
		return ListResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return ListResult{}, statusErr(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ListResult{}, err
	}
	var parsed listBucketResult
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return ListResult{}, fmt.Errorf("objectstore: decoding list response: %w", err)
	}

	objects := make([]ObjectMeta, 0, len(parsed.Contents))
	for _, e := range parsed.Contents {
		lastModified, _ := time.Parse(time.RFC3339, e.LastModified)
		objects = append(objects, ObjectMeta{
			Key:         e.Key,
			Size:        e.Size,
			CreatedAtMs: lastModified.UnixMilli(),
			ETag:        strings.Trim(e.ETag, `"`),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return ListResult{Objects: objects, NextToken: parsed.NextContinuationToken}, nil
}

func statusErr(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("objectstore: s3 request failed: %s: %s", resp.Status, string(body))
}

// --- AWS Signature Version 4 ---

const (
	sigV4Algorithm = "AWS4-HMAC-SHA256"
	sigV4Service   = "s3"
)

// signRequestV4 signs req in place per AWS's SigV4 spec: a canonical
// request is hashed, wrapped into a string-to-sign scoped to
// date/region/service, signed with a derived key chain
// (date -> region -> service -> "aws4_request"), and the result
// attached as an Authorization header. No AWS SDK is used; this is the
// whole algorithm, written out.
func signRequestV4(req *http.Request, cfg S3Config, body []byte, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	payloadHash := hex.EncodeToString(sha256Sum(body))
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	if req.Header.Get("Host") == "" {
		req.Header.Set("Host", req.URL.Host)
	}

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalURI(req.URL),
		canonicalQuery(req.URL),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, cfg.Region, sigV4Service)
	stringToSign := strings.Join([]string{
		sigV4Algorithm,
		amzDate,
		scope,
		hex.EncodeToString(sha256Sum([]byte(canonicalRequest))),
	}, "\n")

	signingKey := deriveSigningKey(cfg.SecretAccessKey, dateStamp, cfg.Region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	authHeader := fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		sigV4Algorithm, cfg.AccessKeyID, scope, signedHeaders, signature)
	req.Header.Set("Authorization", authHeader)
}

func canonicalURI(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return path
}

func canonicalQuery(u *url.URL) string {
	values := u.Query()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

func canonicalizeHeaders(req *http.Request) (canonical, signedList string) {
	names := make([]string, 0, len(req.Header)+1)
	lower := make(map[string]string, len(req.Header))
	addHeader := func(name, value string) {
		key := strings.ToLower(name)
		if _, seen := lower[key]; !seen {
			names = append(names, key)
		}
		lower[key] = value
	}
	for name, values := range req.Header {
		addHeader(name, strings.Join(values, ","))
	}
	addHeader("host", req.Header.Get("Host"))
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(lower[name]))
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

func deriveSigningKey(secret, dateStamp, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, sigV4Service)
	return hmacSHA256(kService, "aws4_request")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func sha256Sum(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}
