package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// mockS3 is an in-memory S3 endpoint behind an http.RoundTripper. It covers
// the operations Store uses: Get, Put (with If-None-Match), Head and ListObjectsV2.
type mockS3 struct {
	mu    sync.Mutex
	state map[string][]byte
	fail  map[string]int // key -> status returned for every request
}

func newMockS3() *mockS3 {
	return &mockS3{state: make(map[string][]byte), fail: make(map[string]int)}
}

func newMockS3Store(m *mockS3, prefix string) *S3 {
	s, err := NewS3(context.Background(), S3Config{
		Region:          "us-east-1",
		Bucket:          "mock-bucket",
		Prefix:          prefix,
		Endpoint:        "http://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: m},
	})
	if err != nil {
		panic(err)
	}
	return s
}

func response(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header, ContentLength: int64(len(body))}
}

func (m *mockS3) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if status, ok := m.fail[key]; ok {
		return response(status, nil, nil), nil
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return m.list(req.URL.Query().Get("prefix")), nil
	}

	switch req.Method {
	case http.MethodHead, http.MethodGet:
		body, ok := m.state[key]
		if !ok {
			return response(http.StatusNotFound, nil, nil), nil
		}
		h := http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Last-Modified":  {"Mon, 01 Jan 2024 00:00:00 GMT"},
			"ETag":           {`"etag"`},
		}
		if req.Method == http.MethodHead {
			return response(http.StatusOK, nil, h), nil
		}
		return response(http.StatusOK, body, h), nil

	case http.MethodPut:
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeChunked(body)
		}
		if req.Header.Get("If-None-Match") == "*" {
			if _, exists := m.state[key]; exists {
				return response(http.StatusPreconditionFailed, nil, nil), nil
			}
		}
		m.state[key] = body
		return response(http.StatusOK, nil, http.Header{"ETag": {`"etag"`}}), nil
	}
	return response(http.StatusNotImplemented, nil, nil), nil
}

func (m *mockS3) list(prefix string) *http.Response {
	var keys []string
	for k := range m.state {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(m.state[k]))
	}
	b.WriteString("</ListBucketResult>")
	return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

// decodeChunked strips aws-chunked framing: "<hex>[;ext]\r\n<data>\r\n" ... "0\r\n".
func decodeChunked(b []byte) []byte {
	r := bufio.NewReader(bytes.NewReader(b))
	var out []byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return out
		}
		sizeHex := strings.TrimSpace(strings.SplitN(line, ";", 2)[0])
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || size == 0 {
			return out
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return out
		}
		out = append(out, chunk...)
		_, _ = r.ReadString('\n')
	}
}
