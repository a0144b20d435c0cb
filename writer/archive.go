package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "shoppulse/config"
	"shoppulse/logger"
	"shoppulse/models"
)

// ParquetRecord is the archived shape of a single order tuple.
type ParquetRecord struct {
	StoreID    string  `parquet:"name=store_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrderID    string  `parquet:"name=order_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp  int64   `parquet:"name=timestamp, type=INT64"`
	TotalPrice float64 `parquet:"name=total_price, type=DOUBLE"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// write-only usage, seeking is never exercised
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// ArchiveWriter persists order tuple batches to S3 as parquet files,
// partitioned by store and date. One file is produced per Archive call.
type ArchiveWriter struct {
	config   *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log
}

func NewArchiveWriter(cfg *appconfig.Config) (*ArchiveWriter, error) {
	log := logger.GetLogger()

	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("archive_writer").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("archive_writer").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("archive writer initialized")

	return &ArchiveWriter{
		config:   cfg,
		s3Client: s3Client,
		log:      log,
	}, nil
}

// Archive writes one parquet file containing the given tuples for a store.
// Tuples with a zero timestamp or missing order id are dropped.
func (w *ArchiveWriter) Archive(ctx context.Context, storeID string, tuples []models.OrderTuple) error {
	started := time.Now()
	batchID := uuid.New().String()
	log := w.log.WithComponent("archive_writer").WithFields(logger.Fields{
		"batch_id":     batchID,
		"store_id":     storeID,
		"record_count": len(tuples),
	})

	if len(tuples) == 0 {
		log.Debug("no tuples to archive, skipping")
		return nil
	}

	log.Info("archiving order tuples")

	key := w.generateS3Key(storeID, batchID, time.Now().UTC())
	data, err := w.createParquetFile(storeID, tuples)
	if err != nil {
		log.WithError(err).Error("failed to create parquet file")
		return fmt.Errorf("create parquet file: %w", err)
	}

	if err := w.uploadToS3(ctx, key, data); err != nil {
		log.WithError(err).
			WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket, "s3_key": key}).
			Error("failed to upload archive to S3")
		return err
	}

	logger.IncrementArchiveWrites()
	log.LogMetric("archive_writer", "archive_bytes", len(data), "gauge", logger.Fields{
		"store_id": storeID,
	})
	logger.LogPerformanceEntry(log, "archive_writer", "archive", time.Since(started), logger.Fields{
		"s3_key":    key,
		"file_size": len(data),
	})
	return nil
}

func (w *ArchiveWriter) generateS3Key(storeID, batchID string, now time.Time) string {
	parts := []string{}
	if prefix := w.config.Storage.S3.Prefix; prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts,
		fmt.Sprintf("store=%s", storeID),
		fmt.Sprintf("date=%s", now.Format("2006-01-02")),
		fmt.Sprintf("orders_%s_%s.parquet", now.Format("20060102150405"), batchID),
	)
	return filepath.ToSlash(filepath.Join(parts...))
}

func (w *ArchiveWriter) createParquetFile(storeID string, tuples []models.OrderTuple) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := parquetwriter.NewParquetWriter(fw, new(ParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch w.config.Storage.S3.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, tuple := range tuples {
		if tuple.OrderID == "" || tuple.Timestamp.IsZero() {
			continue
		}
		total, _ := tuple.TotalPrice.Float64()
		record := ParquetRecord{
			StoreID:    storeID,
			OrderID:    tuple.OrderID,
			Timestamp:  tuple.Timestamp.UnixMilli(),
			TotalPrice: total,
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return fw.Bytes(), nil
}

func (w *ArchiveWriter) uploadToS3(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":      "parquet",
			"shoppulse-version": w.config.Shoppulse.Version,
		},
	}

	_, err := w.s3Client.PutObject(context.WithoutCancel(ctx), input)
	if err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.config.Storage.S3.Bucket, err)
	}
	return nil
}
