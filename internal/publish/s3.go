package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Uploader 把音频上传到对象存储，返回公开可访问的地址
type Uploader interface {
	Upload(ctx context.Context, data []byte, key string) (string, error)
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader 以 public-read 上传 audio/mpeg 对象
type S3Uploader struct {
	client s3API
	bucket string
	region string
}

func NewS3Uploader(cfg aws.Config, bucket string) (*S3Uploader, error) {
	return newS3Uploader(s3.NewFromConfig(cfg), bucket, cfg.Region)
}

func newS3Uploader(client s3API, bucket, region string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, errors.New("publish: S3_BUCKET is not set")
	}
	return &S3Uploader{client: client, bucket: bucket, region: region}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, data []byte, key string) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("audio/mpeg"),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("publish: put s3://%s/%s: %w", u.bucket, key, err)
	}

	url := u.PublicURL(key)
	log.Printf("publish: uploaded %d bytes to %s", len(data), url)
	return url, nil
}

// PublicURL 虚拟主机风格的对象地址
func (u *S3Uploader) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}
