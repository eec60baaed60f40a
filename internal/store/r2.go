// r2.go — Cloudflare R2 (S3-compatible) read client using only the Go
// standard library. Implements AWS Signature Version 4 for authentication.
//
// Required environment variables (read by the config package, not here):
//   R2_ENDPOINT   — https://{account_id}.r2.cloudflarestorage.com
//   R2_BUCKET     — bucket holding clip and thumbnail objects
//   R2_ACCESS_KEY — R2 API token access key ID
//   R2_SECRET_KEY — R2 API token secret access key
//
// GET requests are signed over an empty payload; the Range header travels
// unsigned, which S3-compatible stores accept. Response bodies are returned
// as streams — the gateway forwards them without buffering.
package store

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// emptyPayloadHash is SHA-256 of zero bytes, the payload hash for every GET.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// R2Client fetches objects from a single R2 bucket. Immutable after NewR2,
// safe for concurrent use.
type R2Client struct {
	endpoint   string // https://{account_id}.r2.cloudflarestorage.com
	bucket     string
	accessKey  string
	secretKey  string
	httpClient *http.Client
}

// NewR2 builds an R2 read client. Returns an error if any credential is
// missing so main can fail fast rather than serving 500s.
func NewR2(endpoint, bucket, accessKey, secretKey string) (*R2Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("r2: endpoint is not set (expected https://{account_id}.r2.cloudflarestorage.com)")
	}
	if bucket == "" {
		return nil, fmt.Errorf("r2: bucket is not set")
	}
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("r2: access key and secret key must be set")
	}

	return &R2Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		bucket:    bucket,
		accessKey: accessKey,
		secretKey: secretKey,
		// No overall timeout: response bodies stream for as long as the
		// client keeps reading. Connect latency is bounded separately.
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}, nil
}

// Get fetches bucket/key, optionally ranged. The returned Object's Body is
// the live HTTP response body — callers must close it.
func (c *R2Client) Get(ctx context.Context, key string, byteRange *Range) (*Object, error) {
	req, err := c.newSignedGet(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("r2: build signed request: %w", err)
	}
	if byteRange != nil {
		if byteRange.End < 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", byteRange.Start))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", byteRange.Start, byteRange.End))
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("r2: HTTP request failed: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return &Object{Body: resp.Body, Size: resp.ContentLength}, nil
	case http.StatusPartialContent:
		start, end, total, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("r2: %w", err)
		}
		return &Object{Body: resp.Body, Size: total, Start: start, End: end, Partial: true}, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("r2: unexpected status %d for %s", resp.StatusCode, key)
	}
}

// parseContentRange parses "bytes {start}-{end}/{total}".
func parseContentRange(v string) (start, end, total int64, err error) {
	if _, err = fmt.Sscanf(v, "bytes %d-%d/%d", &start, &end, &total); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", v)
	}
	return start, end, total, nil
}

// newSignedGet builds an HTTP GET request signed with AWS Signature Version 4.
func (c *R2Client) newSignedGet(ctx context.Context, key string) (*http.Request, error) {
	now := time.Now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	// Extract the hostname from the endpoint (everything after "https://").
	host := c.endpoint
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}

	url := fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, key)

	// Canonical headers (must be sorted alphabetically by header name)
	canonicalHeaders := fmt.Sprintf(
		"host:%s\nx-amz-content-sha256:%s\nx-amz-date:%s\n",
		host, emptyPayloadHash, amzDate,
	)
	signedHeaders := "host;x-amz-content-sha256;x-amz-date"

	// Canonical request
	canonicalRequest := strings.Join([]string{
		http.MethodGet,
		"/" + c.bucket + "/" + key,
		"", // no query string
		canonicalHeaders,
		signedHeaders,
		emptyPayloadHash,
	}, "\n")

	// String to sign
	credentialScope := fmt.Sprintf("%s/auto/s3/aws4_request", dateStamp)
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	// Signing key
	signingKey := deriveSigningKey(c.secretKey, dateStamp, "auto", "s3")
	signature := hexHMAC(signingKey, []byte(stringToSign))

	authorization := fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s,SignedHeaders=%s,Signature=%s",
		c.accessKey, credentialScope, signedHeaders, signature,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Host", host)
	req.Header.Set("X-Amz-Content-Sha256", emptyPayloadHash)
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("Authorization", authorization)

	return req, nil
}

// ── AWS Sig V4 helpers ────────────────────────────────────────────────────────

func hexSHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexHMAC(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func rawHMAC(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// deriveSigningKey produces the AWS V4 signing key for a given date, region,
// and service. For Cloudflare R2, region is "auto" and service is "s3".
func deriveSigningKey(secret, date, region, service string) []byte {
	kDate := rawHMAC([]byte("AWS4"+secret), []byte(date))
	kRegion := rawHMAC(kDate, []byte(region))
	kService := rawHMAC(kRegion, []byte(service))
	kSigning := rawHMAC(kService, []byte("aws4_request"))
	return kSigning
}
