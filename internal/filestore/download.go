package filestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
)

// HttpDownloadFunc returns the default seed-file transport. S3 virtual
// host URLs go through the AWS SDK so private buckets work with ambient
// credentials; everything else is a plain GET. Objects with a .zst
// suffix or zstd content type are decompressed on the fly.
func HttpDownloadFunc() DownloadFunc {
	var s3Client *s3.Client

	return func(rawUrl string, path string) error {
		u, err := url.Parse(rawUrl)
		if err != nil {
			return fmt.Errorf("failed to parse url %s: %w", rawUrl, err)
		}

		out, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", path, err)
		}
		defer out.Close()

		var body io.ReadCloser
		var contentType string

		if bucket, key, ok := s3Location(u); ok {
			if s3Client == nil {
				cfg, err := config.LoadDefaultConfig(context.TODO())
				if err != nil {
					return fmt.Errorf("unable to load AWS SDK config: %w", err)
				}
				s3Client = s3.NewFromConfig(cfg)
			}
			obj, err := s3Client.GetObject(context.TODO(), &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return fmt.Errorf("failed to download %s from s3: %w", rawUrl, err)
			}
			body = obj.Body
			if obj.ContentType != nil {
				contentType = *obj.ContentType
			}
		} else {
			resp, err := http.Get(rawUrl)
			if err != nil {
				return fmt.Errorf("failed to download %s: %w", rawUrl, err)
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return fmt.Errorf("failed to download %s: status %s", rawUrl, resp.Status)
			}
			body = resp.Body
			contentType = resp.Header.Get("Content-Type")
		}
		defer body.Close()

		var src io.Reader = body
		if contentType == "application/zstd" || filepath.Ext(u.Path) == ".zst" {
			d, err := zstd.NewReader(body)
			if err != nil {
				return fmt.Errorf("failed to create zstd reader: %w", err)
			}
			defer d.Close()
			src = d
		}

		if _, err := io.Copy(out, src); err != nil {
			return fmt.Errorf("failed to write file %s: %w", path, err)
		}
		return nil
	}
}

// s3Location extracts bucket and key from a virtual-host style URL,
// e.g. bucket.s3.region.amazonaws.com/key.
func s3Location(u *url.URL) (bucket string, key string, ok bool) {
	hostParts := strings.Split(u.Host, ".")
	if len(hostParts) < 4 || hostParts[1] != "s3" || !strings.HasSuffix(u.Host, ".amazonaws.com") {
		return "", "", false
	}
	return hostParts[0], strings.TrimPrefix(u.Path, "/"), true
}
