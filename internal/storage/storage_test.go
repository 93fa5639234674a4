package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestDiskStore_PutDelete(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDiskStore(filepath.Join(dir, "images", "users"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	u, err := d.Put(ctx, "abc.png", "image/png", strings.NewReader("PNG"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if u != "/images/users/abc.png" {
		t.Fatalf("unexpected url %q", u)
	}
	data, err := os.ReadFile(filepath.Join(d.Dir(), "abc.png"))
	if err != nil || string(data) != "PNG" {
		t.Fatalf("file not written: %q %v", data, err)
	}

	if err := d.Delete(ctx, "abc.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := d.Delete(ctx, "abc.png"); err != nil {
		t.Fatalf("second delete must succeed: %v", err)
	}
	entries, _ := os.ReadDir(d.Dir())
	if len(entries) != 0 {
		t.Fatalf("directory not empty: %v", entries)
	}
}

func TestDiskStore_RejectsTraversal(t *testing.T) {
	d, _ := NewDiskStore(t.TempDir())
	for _, name := range []string{"", "..", "../x.png", `a\b.png`, "a/b.png"} {
		if _, err := d.Put(context.Background(), name, "", strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("%q: expected ErrInvalidName, got %v", name, err)
		}
		if err := d.Delete(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("%q: expected ErrInvalidName on delete, got %v", name, err)
		}
	}
}

type objectStub struct {
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectInput
	body    string
	err     error
}

func (o *objectStub) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if o.err != nil {
		return nil, o.err
	}
	b, _ := io.ReadAll(in.Body)
	o.body = string(b)
	o.puts = append(o.puts, in)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (o *objectStub) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.deletes = append(o.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func TestR2Store_Put(t *testing.T) {
	stub := &objectStub{}
	s := NewR2Store(stub, "photos", "https://pub.example.r2.dev/")

	u, err := s.Put(context.Background(), "my pic.jpg", "image/jpeg", strings.NewReader("JPG"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if u != "https://pub.example.r2.dev/images/users/my%20pic.jpg" {
		t.Fatalf("unexpected url %q", u)
	}
	in := stub.puts[0]
	if aws.ToString(in.Bucket) != "photos" || aws.ToString(in.Key) != "images/users/my pic.jpg" || aws.ToString(in.ContentType) != "image/jpeg" {
		t.Fatalf("unexpected input %+v", in)
	}
	if stub.body != "JPG" {
		t.Fatalf("body not forwarded: %q", stub.body)
	}
}

func TestR2Store_WithoutPublicURL(t *testing.T) {
	s := NewR2Store(&objectStub{}, "photos", "")
	u, err := s.Put(context.Background(), "a.png", "image/png", strings.NewReader("x"))
	if err != nil || u != "/images/users/a.png" {
		t.Fatalf("unexpected %q %v", u, err)
	}
}

func TestR2Store_Delete(t *testing.T) {
	stub := &objectStub{}
	s := NewR2Store(stub, "photos", "")
	if err := s.Delete(context.Background(), "a.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if aws.ToString(stub.deletes[0].Key) != "images/users/a.png" {
		t.Fatalf("unexpected key %q", aws.ToString(stub.deletes[0].Key))
	}

	stub.err = errors.New("boom")
	if err := s.Delete(context.Background(), "a.png"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestCleanURL(t *testing.T) {
	if got := CleanURL("https://x.dev/a b.png"); got != "https://x.dev/a%20b.png" {
		t.Fatalf("unexpected %q", got)
	}
}
