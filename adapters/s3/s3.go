package s3

//go:generate mockgen -source=s3.go -destination=s3_mock.go -package=s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// IPutObjectAPI 是 ObjectStore 需要的 S3 API 子集
type IPutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ObjectStore struct {
	// client 是 S3 客戶端。
	client IPutObjectAPI
	// bucket 是 S3 存儲桶的名稱。
	bucket string
	// publicEndpoint 是 S3 存儲桶的公開 Endpoint。
	publicEndpoint *url.URL
}

func NewObjectStore(client IPutObjectAPI, bucket, publicBaseURL string) (*ObjectStore, error) {
	const op = "NewObjectStore"
	if client == nil {
		return nil, errors.New("s3 client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("bucket cannot be empty")
	}
	publicEndpoint, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse public base URL, err=%w", op, err)
	}
	return &ObjectStore{client: client, bucket: bucket, publicEndpoint: publicEndpoint}, nil
}

// Put 上傳物件並回傳公開的 URL
func (s *ObjectStore) Put(ctx context.Context, key, contentType string, content []byte) (string, error) {
	const op = "Put"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to upload object to S3, err=%w", op, err)
	}
	uri := *s.publicEndpoint
	uri.Path = path.Join("/", uri.Path, key)
	return uri.String(), nil
}
