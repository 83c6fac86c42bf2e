package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	fig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/chatterhq/chatter/config"
	"github.com/chatterhq/chatter/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// MediaRepository is the media-store collaborator: it uploads binary
// attachments under a namespace and deletes them by key. Asset rows track
// the references; object deletion is always an explicit step.
type MediaRepository interface {
	UploadToS3(fileHeader *multipart.FileHeader, ownerID uuid.UUID, folderName string) (*models.MediaAsset, error)
	DeleteFromS3(key string) error
}

type mediaRepo struct {
	DB   *gorm.DB
	Conf *config.Config
}

func NewMediaRepo(db *GormDB, conf *config.Config) MediaRepository {
	return &mediaRepo{DB: db.DB, Conf: conf}
}

func (m *mediaRepo) createS3Client() (*s3.Client, error) {
	cfg, err := fig.LoadDefaultConfig(context.TODO(),
		fig.WithRegion(m.Conf.AwsRegion),
		fig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			os.Getenv("AWS_ACCESS_KEY_ID"),
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	return s3.NewFromConfig(cfg), nil
}

func (m *mediaRepo) UploadToS3(fileHeader *multipart.FileHeader, ownerID uuid.UUID, folderName string) (*models.MediaAsset, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.Wrap(err, "unable to open media file")
	}
	defer file.Close()

	fileContent, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file content")
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(fileContent)
	}

	ext := strings.TrimPrefix(filepath.Ext(fileHeader.Filename), ".")
	if ext == "" {
		ext = "bin"
	}
	key := fmt.Sprintf("%s/%d-%s.%s", folderName, time.Now().UnixNano(), uuid.New().String()[:8], ext)

	client, err := m.createS3Client()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create S3 client")
	}

	_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(m.Conf.AwsBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(fileContent),
		ContentType: aws.String(mimeType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to upload file to S3")
	}

	asset := models.MediaAsset{
		OwnerID:  ownerID,
		Key:      key,
		URL:      fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.Conf.AwsBucket, m.Conf.AwsRegion, key),
		MimeType: mimeType,
		Size:     fileHeader.Size,
	}
	if err := m.DB.Create(&asset).Error; err != nil {
		return nil, errors.Wrap(err, "failed to save media asset")
	}

	return &asset, nil
}

func (m *mediaRepo) DeleteFromS3(key string) error {
	if key == "" {
		return nil
	}

	client, err := m.createS3Client()
	if err != nil {
		return errors.Wrap(err, "failed to create S3 client")
	}

	_, err = client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(m.Conf.AwsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete file from S3")
	}

	if err := m.DB.Where("key = ?", key).Delete(&models.MediaAsset{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete media asset row")
	}
	return nil
}
