package blob

import (
	"context"
	"strings"
	"testing"
	"time"

	"shipdocs/internal/util"

	"github.com/stretchr/testify/require"
)

func TestObjectPathUsesYearMonth(t *testing.T) {
	ts := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
	require.Equal(t, "2024/03/BOL_4500123_20240307_140509.pdf", ObjectPath(ts, "BOL_4500123_20240307_140509.pdf"))
}

func TestUploadName(t *testing.T) {
	ts := time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
	require.Equal(t, "20240307_140509_PO_4500123.pdf", UploadName(ts, "../tmp/PO 4500123.pdf"))
	require.Equal(t, "20240307_140509_file", UploadName(ts, "../"))
}

func TestContentType(t *testing.T) {
	require.Equal(t, "application/pdf", ContentType("a.PDF"))
	require.True(t, strings.HasPrefix(ContentType("slip.xlsx"), "application/vnd.openxmlformats"))
	require.Equal(t, "application/octet-stream", ContentType("noext"))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)

	obj, err := s.Put(ctx, "generated-documents", "2024/03/a.pdf", []byte("pdf"), "application/pdf")
	require.NoError(t, err)
	require.Equal(t, 3, obj.Size)
	require.Equal(t, "http://localhost:8080/files/generated-documents/2024/03/a.pdf", obj.URL)

	b, err := s.Get(ctx, "generated-documents", "2024/03/a.pdf")
	require.NoError(t, err)
	require.Equal(t, "pdf", string(b))

	require.NoError(t, s.Delete(ctx, "generated-documents", "2024/03/a.pdf"))
	_, err = s.Get(ctx, "generated-documents", "2024/03/a.pdf")
	require.ErrorIs(t, err, util.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "generated-documents", "2024/03/a.pdf"))
}

func TestLocalStoreConfinesPaths(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root, "")
	require.NoError(t, err)

	_, err = s.Put(ctx, "../escape", "x", []byte("x"), "")
	require.Error(t, err)

	obj, err := s.Put(ctx, "uploads", "../../x.pdf", []byte("x"), "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(obj.URL, "file://"))
	require.Contains(t, obj.URL, "/uploads/x.pdf")
}
