package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (s *stubS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.in = in
	if in.Body != nil {
		s.body, _ = io.ReadAll(in.Body)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &s3.PutObjectOutput{}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCoverKey(t *testing.T) {
	id := uuid.MustParse("2f1c7e3a-5d8b-4c1e-9f0a-1b2c3d4e5f60")
	assert.Equal(t, "2f1c7e3a-5d8b-4c1e-9f0a-1b2c3d4e5f60/cover.jpg", CoverKey(id))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/a/cover.jpg", PublicURL("https://cdn.test/", "/a/cover.jpg"))
	assert.Equal(t, "https://cdn.test/a/cover.jpg", PublicURL("https://cdn.test", "a/cover.jpg"))
}

func TestS3Uploader_Put(t *testing.T) {
	stub := &stubS3{}
	u := newS3Uploader(stub, "gifts", "https://cdn.test")

	url, err := u.Put(context.Background(), "abc/cover.jpg", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://cdn.test/abc/cover.jpg?v="), url)
	assert.Equal(t, "gifts", *stub.in.Bucket)
	assert.Equal(t, "abc/cover.jpg", *stub.in.Key)
	assert.Equal(t, "image/jpeg", *stub.in.ContentType)
	assert.Equal(t, int64(10), *stub.in.ContentLength)
	assert.Equal(t, []byte("jpeg-bytes"), stub.body)
	assert.Equal(t, "public, max-age=300", *stub.in.CacheControl)
}

func TestS3Uploader_PutError(t *testing.T) {
	u := newS3Uploader(&stubS3{err: errors.New("access denied")}, "gifts", "https://cdn.test")

	_, err := u.Put(context.Background(), "k", []byte("x"), "image/jpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewS3_StaticCredentials(t *testing.T) {
	u, err := NewS3(context.Background(), S3Config{
		Bucket:          "gifts",
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		ForcePathStyle:  true,
		PublicBaseURL:   "http://127.0.0.1:9000/gifts",
	})
	require.NoError(t, err)
	assert.Equal(t, "gifts", u.bucket)
}

func TestNormalizePhoto_DownscalesAndConvertsToJPEG(t *testing.T) {
	out, err := NormalizePhoto(pngBytes(t, 3200, 1600))
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err, "output must be a JPEG")
	assert.Equal(t, 1600, cfg.Width)
	assert.Equal(t, 800, cfg.Height)
}

func TestNormalizePhoto_KeepsSmallImageSize(t *testing.T) {
	out, err := NormalizePhoto(pngBytes(t, 400, 300))
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestNormalizePhoto_RejectsNonImages(t *testing.T) {
	_, err := NormalizePhoto([]byte("<html><body>not a photo</body></html>"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

// pngHeader returns a PNG that declares w×h grayscale pixels but carries no
// pixel data. Only the header is ever read for an oversized image.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth; color type 0 (grayscale), default compression/filter/interlace

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestNormalizePhoto_RejectsOversizedDimensions(t *testing.T) {
	cases := map[string][2]uint32{
		"too many pixels": {8000, 6000},
		"side too long":   {12001, 10},
		"huge":            {100000, 100000},
	}
	for name, dims := range cases {
		t.Run(name, func(t *testing.T) {
			data := pngHeader(dims[0], dims[1])
			require.Less(t, len(data), 100, "header-only upload must be tiny")

			_, err := NormalizePhoto(data)
			assert.ErrorIs(t, err, ErrUnsupportedImage)
			assert.Contains(t, err.Error(), "pixel limit")
		})
	}
}

func TestNormalizePhoto_RejectsTruncatedImage(t *testing.T) {
	data := pngBytes(t, 100, 100)
	_, err := NormalizePhoto(data[:40])
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestSniffImage(t *testing.T) {
	ct, err := SniffImage(pngBytes(t, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	_, err = SniffImage([]byte("GIF89a......"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
