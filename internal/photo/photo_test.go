package photo

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies []string
}

func (f *fakeUploader) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(params.Body)
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	inputs []*s3.PutObjectInput
}

func (f *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.inputs = append(f.inputs, params)
	return &v4.PresignedHTTPRequest{
		URL: "https://presigned.example/" + aws.ToString(params.Key),
	}, nil
}

func TestUpload(t *testing.T) {
	uploader := &fakeUploader{}
	store := New(uploader, nil, "item-photos")

	url, err := store.Upload(context.Background(), []byte("jpeg bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if len(uploader.inputs) != 1 {
		t.Fatalf("expected 1 PutObject, got %d", len(uploader.inputs))
	}
	in := uploader.inputs[0]
	if aws.ToString(in.Bucket) != "item-photos" {
		t.Errorf("expected bucket 'item-photos', got %q", aws.ToString(in.Bucket))
	}
	if aws.ToString(in.ContentType) != "image/jpeg" {
		t.Errorf("expected image/jpeg content type, got %q", aws.ToString(in.ContentType))
	}
	if uploader.bodies[0] != "jpeg bytes" {
		t.Errorf("unexpected body %q", uploader.bodies[0])
	}

	key := aws.ToString(in.Key)
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("expected .jpg key, got %q", key)
	}
	want := "https://item-photos.s3.amazonaws.com/" + key
	if url != want {
		t.Errorf("expected url %q, got %q", want, url)
	}
}

func TestPresignUpload(t *testing.T) {
	presigner := &fakePresigner{}
	store := New(nil, presigner, "item-photos")

	uploadURL, publicURL, err := store.PresignUpload(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}

	if len(presigner.inputs) != 1 {
		t.Fatalf("expected 1 presign call, got %d", len(presigner.inputs))
	}
	key := aws.ToString(presigner.inputs[0].Key)
	if uploadURL != "https://presigned.example/"+key {
		t.Errorf("unexpected upload URL %q", uploadURL)
	}
	if publicURL != "https://item-photos.s3.amazonaws.com/"+key {
		t.Errorf("unexpected public URL %q", publicURL)
	}
}

func TestNewKeyUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		key := NewKey()
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}
