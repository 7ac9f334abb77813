package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sharedcode/strata"
	"github.com/sharedcode/strata/encoding"
)

const (
	recordKeyPrefix    = "records/"
	largeObjectMinSize = 10 * 1024 * 1024
	defaultBatchSize   = 50
	// SaveBatch fan-out width. Matches the teacherly sweet spot between S3
	// request parallelism and not hammering a single prefix.
	batchThreadCount = 8
)

// ColdStore persists records as JSON objects under records/<identityKey> in
// one bucket. The bucket is the authoritative store; Save overwrites blindly
// because the engine only sends merge winners.
type ColdStore struct {
	bucketName string
	s3Client   *s3.Client
}

// NewColdStore returns a strata.ColdStore over the given bucket.
func NewColdStore(s3Client *s3.Client, bucketName string) (*ColdStore, error) {
	if s3Client == nil {
		return nil, fmt.Errorf("s3Client parameter can't be nil")
	}
	return &ColdStore{
		bucketName: bucketName,
		s3Client:   s3Client,
	}, nil
}

func (b *ColdStore) Save(ctx context.Context, r strata.Record) error {
	return b.put(ctx, r, false)
}

// SaveBatch uploads records in batches, fanning each batch out on a task
// runner. Any record failure fails the whole call; the engine then retries
// records individually so partial progress is not lost.
func (b *ColdStore) SaveBatch(ctx context.Context, records []strata.Record, opts strata.BatchOptions) error {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		tr := strata.NewTaskRunner(ctx, batchThreadCount)
		for _, rec := range records[i:end] {
			tr.Go(func() error {
				return b.put(tr.GetContext(), rec, opts.Compression)
			})
		}
		if err := tr.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Query lists the record objects and returns up to limit records whose
// Timestamp falls within rng, newest first.
func (b *ColdStore) Query(ctx context.Context, rng strata.TimeRange, limit int) ([]strata.Record, error) {
	var out []strata.Record
	var token *string
	for {
		page, err := b.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucketName),
			Prefix:            aws.String(recordKeyPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("couldn't list bucket %s, details: %v", b.bucketName, err)
		}
		for _, obj := range page.Contents {
			r, err := b.fetch(ctx, *obj.Key)
			if err != nil {
				return nil, err
			}
			if rng.Contains(r.Timestamp) {
				out = append(out, r)
			}
		}
		if page.NextContinuationToken == nil {
			break
		}
		token = page.NextContinuationToken
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Fetch reads the record object for identityKey. A missing object is reported
// as not found, not as an error.
func (b *ColdStore) Fetch(ctx context.Context, identityKey string) (bool, strata.Record, error) {
	r, err := b.fetch(ctx, recordKeyPrefix+identityKey)
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return false, strata.Record{}, nil
		}
		return false, strata.Record{}, err
	}
	return true, r, nil
}

func (b *ColdStore) put(ctx context.Context, r strata.Record, compress bool) error {
	ba, err := encoding.DefaultMarshaler.Marshal(r)
	if err != nil {
		return err
	}
	var contentEncoding *string
	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(ba); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		ba = buf.Bytes()
		contentEncoding = aws.String("gzip")
	}

	key := recordKeyPrefix + r.IdentityKey
	// Upload large objects via the multipart manager.
	if len(ba) >= largeObjectMinSize {
		uploader := manager.NewUploader(b.s3Client, func(u *manager.Uploader) {
			u.PartSize = largeObjectMinSize
		})
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:          aws.String(b.bucketName),
			Key:             aws.String(key),
			Body:            bytes.NewReader(ba),
			ContentEncoding: contentEncoding,
		})
		return err
	}
	_, err = b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(b.bucketName),
		Key:             aws.String(key),
		Body:            bytes.NewReader(ba),
		ContentEncoding: contentEncoding,
	})
	return err
}

func (b *ColdStore) fetch(ctx context.Context, key string) (strata.Record, error) {
	var r strata.Record
	result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return r, err
	}
	defer result.Body.Close()

	var reader io.Reader = result.Body
	if result.ContentEncoding != nil && *result.ContentEncoding == "gzip" {
		zr, err := gzip.NewReader(result.Body)
		if err != nil {
			return r, err
		}
		defer zr.Close()
		reader = zr
	}
	ba, err := io.ReadAll(reader)
	if err != nil {
		return r, err
	}
	err = encoding.DefaultMarshaler.Unmarshal(ba, &r)
	return r, err
}
