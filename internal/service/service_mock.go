package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK LEDGER

type mockLedger struct {
	isProcessedFn   func(ctx context.Context, key model.WorkKey) (bool, error)
	markProcessedFn func(ctx context.Context, key model.WorkKey) error
}

func (m *mockLedger) IsProcessed(ctx context.Context, key model.WorkKey) (bool, error) {
	return m.isProcessedFn(ctx, key)
}

func (m *mockLedger) MarkProcessed(ctx context.Context, key model.WorkKey) error {
	return m.markProcessedFn(ctx, key)
}

// MOCK MANIFEST STORE

type mockManifests struct {
	appendFn  func(ctx context.Context, m *model.Manifest) error
	drainFn   func(ctx context.Context, tenant string) ([]model.Manifest, error)
	tenantsFn func(ctx context.Context) ([]string, error)
}

func (m *mockManifests) Append(ctx context.Context, man *model.Manifest) error {
	return m.appendFn(ctx, man)
}

func (m *mockManifests) Drain(ctx context.Context, tenant string) ([]model.Manifest, error) {
	return m.drainFn(ctx, tenant)
}

func (m *mockManifests) TenantsWithPending(ctx context.Context) ([]string, error) {
	return m.tenantsFn(ctx)
}

// MOCK ARCHIVE STORAGE

type mockArchive struct {
	putFn func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn func(ctx context.Context, key string) (io.ReadCloser, string, error)
}

func (m *mockArchive) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockArchive) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, s, key, v)
}

// MOCK PROCESSOR

type mockProcessor struct {
	processFn func(ctx context.Context, key model.WorkKey, originalPath string, outDir string) error
}

func (m *mockProcessor) Process(ctx context.Context, key model.WorkKey, originalPath string, outDir string) error {
	return m.processFn(ctx, key, originalPath, outDir)
}

// MOCK для multipart.File
type fakeMultipartFile struct {
	*bytes.Reader
}

func (f *fakeMultipartFile) Close() error {
	return nil
}

// MOCK для multipart.File, у которого отваливается чтение
type brokenMultipartFile struct{}

func (brokenMultipartFile) Read(p []byte) (int, error) {
	return 0, errors.New("disk read failed")
}

func (brokenMultipartFile) ReadAt(p []byte, off int64) (int, error) {
	return 0, errors.New("disk read failed")
}

func (brokenMultipartFile) Seek(offset int64, whence int) (int64, error) {
	return 0, nil
}

func (brokenMultipartFile) Close() error {
	return nil
}
