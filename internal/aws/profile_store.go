package aws

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ProfileStore serves the owner profile documents that stage workers need as
// scoring context
type ProfileStore interface {
	GetProfile(ctx context.Context, ownerID string) (string, error)
	UploadProfile(ctx context.Context, ownerID string, body io.Reader) (string, error)
	TestConnection() error
}

type profileStore struct {
	s3     *s3.Client
	bucket string
	region string
}

func NewProfileStore(accessKey, secretKey, bucketName, region string) (ProfileStore, error) {
	credProvider := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credProvider),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg)

	return &profileStore{
		s3:     client,
		bucket: bucketName,
		region: region,
	}, nil
}

func profileKey(ownerID string) string {
	return fmt.Sprintf("owners/%s/profile.txt", ownerID)
}

// GetProfile downloads the owner's profile text
func (s *profileStore) GetProfile(ctx context.Context, ownerID string) (string, error) {
	key := profileKey(ownerID)

	buf := manager.NewWriteAtBuffer([]byte{})
	downloader := manager.NewDownloader(s.s3)
	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Error().Err(err).Str("ownerID", ownerID).Str("key", key).Msg("Failed to download profile")
		return "", err
	}

	log.Debug().Str("ownerID", ownerID).Int("size", len(buf.Bytes())).Msg("Downloaded owner profile")
	return string(buf.Bytes()), nil
}

// UploadProfile stores the owner's profile text and returns its URL
func (s *profileStore) UploadProfile(ctx context.Context, ownerID string, body io.Reader) (string, error) {
	key := profileKey(ownerID)

	uploader := manager.NewUploader(s.s3)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		log.Error().Err(err).Str("ownerID", ownerID).Str("key", key).Msg("Failed to upload profile")
		return "", err
	}

	profileURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	log.Info().Str("ownerID", ownerID).Str("url", profileURL).Msg("Uploaded owner profile")
	return profileURL, nil
}

func (s *profileStore) TestConnection() error {
	// Fetch at most one key to validate bucket access
	_, err := s.s3.ListObjectsV2(context.TODO(), &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	})
	log.Err(err).Msg("AWS S3 Test Connection")

	return err
}
