package handlers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bennyh960/queue-manager/pkg/archive"
	"github.com/bennyh960/queue-manager/pkg/handlers"
)

type fakeUploader struct {
	err            error
	gotKey         string
	gotBody        []byte
	gotContentType string
}

func (f *fakeUploader) Put(ctx context.Context, key string, body []byte, contentType string) error {
	f.gotKey = key
	f.gotBody = body
	f.gotContentType = contentType
	return f.err
}

func TestArchiveUpload(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid base64", func(t *testing.T) {
		h := handlers.NewArchiveUpload(&fakeUploader{})
		err := h.Handle(context.Background(), mustPayload(t, handlers.ArchiveUploadPayload{
			Key: "a/b", ContentB64: "not base64!!!",
		}))
		assert.ErrorIs(t, err, handlers.ErrInvalidPayload)
	})

	t.Run("decodes and uploads", func(t *testing.T) {
		up := &fakeUploader{}
		h := handlers.NewArchiveUpload(up)
		err := h.Handle(context.Background(), mustPayload(t, handlers.ArchiveUploadPayload{
			Key: "a/b", ContentB64: "aGVsbG8=", ContentType: "text/plain",
		}))
		require.NoError(t, err)
		assert.Equal(t, "a/b", up.gotKey)
		assert.Equal(t, []byte("hello"), up.gotBody)
		assert.Equal(t, "text/plain", up.gotContentType)
	})

	t.Run("maps an invalid path to ErrInvalidPayload", func(t *testing.T) {
		up := &fakeUploader{err: archive.ErrInvalidPath}
		h := handlers.NewArchiveUpload(up)
		err := h.Handle(context.Background(), mustPayload(t, handlers.ArchiveUploadPayload{
			Key: "../escape", ContentB64: "aGVsbG8=",
		}))
		assert.ErrorIs(t, err, handlers.ErrInvalidPayload)
	})

	t.Run("wraps other upload failures", func(t *testing.T) {
		up := &fakeUploader{err: errors.New("access denied")}
		h := handlers.NewArchiveUpload(up)
		err := h.Handle(context.Background(), mustPayload(t, handlers.ArchiveUploadPayload{
			Key: "a/b", ContentB64: "aGVsbG8=",
		}))
		assert.ErrorIs(t, err, handlers.ErrArchiveUploadFailed)
	})
}
