// Package reference resolves the per-request voice conditioning audio from
// one of several sources and stages it on local disk for the request's
// lifetime.
package reference

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voiceforge/api/internal/config"
	"github.com/voiceforge/api/internal/fault"
)

const wavHeaderSize = 44

// Artifact is a resolved, locally staged reference audio file. The caller
// owns it and must call Discard once the execution engine has consumed it.
type Artifact struct {
	Path string
	Size int64
}

// Discard removes the staged file. Safe to call more than once.
func (a *Artifact) Discard() {
	if a == nil || a.Path == "" {
		return
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("[Reference] Failed to remove staged file %s: %v", a.Path, err)
	}
	a.Path = ""
}

// Resolver resolves reference audio with a strict source precedence:
// inline base64, then remote URL, then the configured default. A source
// that is present but invalid fails the request; later sources are never
// consulted as a fallback.
type Resolver struct {
	httpClient  *http.Client
	stagingDir  string
	defaultPath string
	maxBytes    int64
}

// NewResolver creates a resolver from the reference configuration
func NewResolver(cfg *config.ReferenceConfig) *Resolver {
	return &Resolver{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		},
		stagingDir:  cfg.StagingDir,
		defaultPath: cfg.DefaultPath,
		maxBytes:    cfg.MaxBytes,
	}
}

// Resolve stages the reference audio for one request. The token keys the
// staging path so concurrent requests never collide, including when both
// resolve the default voice.
func (r *Resolver) Resolve(ctx context.Context, reference, token string) (*Artifact, error) {
	switch {
	case reference == "":
		return r.resolveDefault(token)
	case strings.HasPrefix(reference, "http://"), strings.HasPrefix(reference, "https://"):
		return r.resolveURL(ctx, reference, token)
	case strings.Contains(reference, "://"):
		return nil, fault.New(fault.InvalidReference,
			"unsupported reference URL scheme in %q", reference)
	default:
		return r.resolveInline(reference, token)
	}
}

// resolveInline decodes base64-encoded reference bytes. Decode or
// validation failure is terminal — the resolver does not fall through to
// another source.
func (r *Resolver) resolveInline(encoded, token string) (*Artifact, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidReference, err, "reference is not valid base64")
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fault.New(fault.InvalidReference,
			"decoded reference is %d bytes, limit is %d", len(data), r.maxBytes)
	}
	if err := validateWAV(data); err != nil {
		return nil, fault.Wrap(fault.InvalidReference, err, "decoded reference rejected")
	}

	path, err := r.stage(token, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &Artifact{Path: path, Size: int64(len(data))}, nil
}

// resolveURL downloads the reference over http(s). The body is streamed to
// the staging file through a size guard: the download aborts the moment the
// limit is exceeded instead of buffering the full body first.
func (r *Resolver) resolveURL(ctx context.Context, url, token string) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidReference, err, "invalid reference URL")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidReference, err, "failed to fetch reference URL")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.New(fault.InvalidReference,
			"reference URL returned status %d", resp.StatusCode)
	}

	path := r.stagingPath(token)
	size, err := r.stageLimited(path, resp.Body)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	header := make([]byte, wavHeaderSize)
	f, err := os.Open(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to reopen staged reference: %w", err)
	}
	n, _ := io.ReadFull(f, header)
	f.Close()
	if err := validateWAV(header[:n]); err != nil {
		os.Remove(path)
		return nil, fault.Wrap(fault.InvalidReference, err, "downloaded reference rejected")
	}

	return &Artifact{Path: path, Size: size}, nil
}

// resolveDefault stages a per-request copy of the configured default voice
func (r *Resolver) resolveDefault(token string) (*Artifact, error) {
	if r.defaultPath == "" {
		return nil, fault.New(fault.NoReferenceAvailable,
			"no reference supplied and no default voice configured")
	}

	src, err := os.Open(r.defaultPath)
	if err != nil {
		return nil, fault.Wrap(fault.NoReferenceAvailable, err,
			"default voice %s is not readable", r.defaultPath)
	}
	defer src.Close()

	path, err := r.stage(token, src)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to stat staged default voice: %w", err)
	}
	return &Artifact{Path: path, Size: info.Size()}, nil
}

func (r *Resolver) stagingPath(token string) string {
	return filepath.Join(r.stagingDir, fmt.Sprintf("ref-%s.wav", token))
}

// stage writes src to the token-keyed staging file
func (r *Resolver) stage(token string, src io.Reader) (string, error) {
	if err := os.MkdirAll(r.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	path := r.stagingPath(token)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create staged file: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close staged file: %w", err)
	}
	return path, nil
}

// stageLimited streams src to path, failing as soon as more than maxBytes
// have been read.
func (r *Resolver) stageLimited(path string, src io.Reader) (int64, error) {
	if err := os.MkdirAll(r.stagingDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create staging dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create staged file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, io.LimitReader(src, r.maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("failed to download reference: %w", err)
	}
	if written > r.maxBytes {
		return 0, fault.New(fault.InvalidReference,
			"reference download exceeds the %d byte limit", r.maxBytes)
	}
	return written, nil
}

// validateWAV checks the RIFF/WAVE container signature and the minimum
// header length.
func validateWAV(data []byte) error {
	if len(data) < wavHeaderSize {
		return fmt.Errorf("audio is %d bytes, smaller than a WAV header", len(data))
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return fmt.Errorf("audio does not carry a RIFF/WAVE signature")
	}
	return nil
}
