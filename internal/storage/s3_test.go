package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu     sync.Mutex
	method string
	path   string
	body   string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.method = r.Method
	f.path = r.URL.Path
	f.body = string(data)
	f.mu.Unlock()
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func newTestS3Service(t *testing.T, handler http.Handler) *S3Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		}),
	})
	return NewS3Service(client)
}

func TestS3Service_Upload(t *testing.T) {
	fake := &fakeS3{}
	svc := newTestS3Service(t, fake)

	location, err := svc.Upload(context.Background(), strings.NewReader(`{"runId":"r1"}`), UploadOptions{
		Bucket:      "migrations",
		Key:         "/users/r1.json",
		ContentType: "application/json",
	})
	require.NoError(t, err)

	assert.Equal(t, "s3://migrations/users/r1.json", location)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, http.MethodPut, fake.method)
	assert.Equal(t, "/migrations/users/r1.json", fake.path)
	assert.Contains(t, fake.body, `"runId":"r1"`)
}

func TestS3Service_UploadRequiresBucketAndKey(t *testing.T) {
	svc := newTestS3Service(t, http.NotFoundHandler())

	_, err := svc.Upload(context.Background(), strings.NewReader("x"), UploadOptions{Key: "k"})
	assert.EqualError(t, err, "storage bucket is required")

	_, err = svc.Upload(context.Background(), strings.NewReader("x"), UploadOptions{Bucket: "b", Key: "/"})
	assert.EqualError(t, err, "object key is required")
}
