package infra

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"
)

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	client.Close()

	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewRedisClient(context.Background(), "::not a url"); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

func TestNewPostgresPoolRejectsBadURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), "", "iso"); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewPostgresPool(context.Background(), "postgres://%zz", "iso"); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

func TestNewS3ClientCustomEndpoint(t *testing.T) {
	client, err := NewS3Client(context.Background(), ObjectStoreConfig{
		Region:    "eu-west-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio-secret",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	opts := client.Options()
	if opts.Region != "eu-west-1" || !opts.UsePathStyle || aws.ToString(opts.BaseEndpoint) != "http://localhost:9000" {
		t.Fatalf("unexpected options region=%s path=%v endpoint=%s", opts.Region, opts.UsePathStyle, aws.ToString(opts.BaseEndpoint))
	}
	creds, err := opts.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "minio" {
		t.Fatalf("expected static credentials, got %q", creds.AccessKeyID)
	}
}

func TestRedisTimeoutsDefaultUnlessSetInURL(t *testing.T) {
	opt, err := redis.ParseURL("redis://localhost:6379/0?read_timeout=3s")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	applyTimeouts(opt)
	if opt.ReadTimeout != 3*time.Second {
		t.Fatalf("url timeout overridden: %s", opt.ReadTimeout)
	}
	if opt.WriteTimeout != redisIOTimeout || opt.DialTimeout != redisDialTimeout {
		t.Fatalf("defaults not applied: write=%s dial=%s", opt.WriteTimeout, opt.DialTimeout)
	}
}
