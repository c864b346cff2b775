package s3

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/oklog/ulid/v2"
)

type ItfS3 interface {
	UploadArtifact(path string) (string, error)
	PresignUrl(fileUrl string) (string, error)
	DeleteFile(fileName string) error
}

type s3Client struct {
	client     *s3.S3
	session    *session.Session
	bucketName string
	prefix     string
}

func New() (ItfS3, error) {
	bucket := os.Getenv("AWS_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("AWS_BUCKET_NAME is not set")
	}

	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	prefix := os.Getenv("AWS_ARTIFACT_PREFIX")
	if prefix == "" {
		prefix = "detections"
	}

	return &s3Client{
		client:     s3.New(sess),
		session:    sess,
		bucketName: bucket,
		prefix:     strings.Trim(prefix, "/"),
	}, nil
}

// UploadArtifact mirrors a local output file and returns its object URL.
func (s *s3Client) UploadArtifact(path string) (string, error) {
	uploader := s3manager.NewUploader(s.session)

	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	key := artifactKey(s.prefix, filepath.Base(path), time.Now())

	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   src,
	}
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	uploadOutput, err := uploader.Upload(input)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return uploadOutput.Location, nil
}

func (s *s3Client) PresignUrl(fileUrl string) (string, error) {
	key := extractKeyFromS3Url(fileUrl)

	decodedKey, err := url.QueryUnescape(key)
	if err != nil {
		return "", fmt.Errorf("failed to decode S3 key: %w", err)
	}

	_, err = s.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(decodedKey),
	})
	if err != nil {
		return "", fmt.Errorf("file does not exist: %w", err)
	}

	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(decodedKey),
	})

	urlStr, err := req.Presign(15 * time.Minute)
	if err != nil {
		return "", err
	}

	return urlStr, nil
}

func (s *s3Client) DeleteFile(fileName string) error {
	decodedFileName, err := url.QueryUnescape(extractKeyFromS3Url(fileName))
	if err != nil {
		return fmt.Errorf("failed to decode filename: %w", err)
	}

	_, err = s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(decodedFileName),
	})

	return err
}

func extractKeyFromS3Url(fileUrl string) string {
	parts := strings.SplitN(fileUrl, ".com/", 2)
	if len(parts) > 1 {
		return parts[1]
	}
	return fileUrl
}

func artifactKey(prefix, name string, now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	key := fmt.Sprintf("%s/%s-%s", now.UTC().Format("2006/01/02"), strings.ToLower(id.String()), name)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func newSession() (*session.Session, error) {
	cfg := &aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
		Credentials: credentials.NewStaticCredentials(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			"",
		),
	}
	if endpoint := os.Getenv("AWS_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}

	return sess, nil
}
