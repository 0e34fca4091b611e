package frame_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyctools/runtime/internal/frame"
)

func TestReleaseFiresOnceRefsReachZero(t *testing.T) {
	var released int
	var mu sync.Mutex
	f := frame.New()
	f.BindRelease(func(*frame.Frame) {
		mu.Lock()
		released++
		mu.Unlock()
	})

	f.Retain()
	f.Retain()
	f.Release()
	f.Release()
	mu.Lock()
	assert.Equal(t, 0, released, "release must not fire before the last reference drops")
	mu.Unlock()

	f.Release()
	mu.Lock()
	assert.Equal(t, 1, released)
	mu.Unlock()
}

func TestInitialiseCopiesButSharesData(t *testing.T) {
	src := frame.New()
	src.FrameNo = 7
	src.Type = "Y"
	src.Data = []byte{1, 2, 3}
	src.Metadata.Set("audit", "data = Source(data)\n")

	dst := frame.New()
	dst.Initialise(src)

	assert.Equal(t, int64(7), dst.FrameNo)
	assert.Equal(t, "Y", dst.Type)
	src.Data.([]byte)[0] = 9
	assert.Equal(t, byte(9), dst.Data.([]byte)[0], "Data must be shared, not copied")
	audit, ok := dst.Metadata.Get("audit")
	require.True(t, ok)
	assert.Equal(t, "data = Source(data)\n", audit)
}

func TestIsStatic(t *testing.T) {
	f := frame.New()
	assert.True(t, f.IsStatic())
	f.FrameNo = 0
	assert.False(t, f.IsStatic())
}

func TestSetAuditAppendsHistoryAndTrailer(t *testing.T) {
	md := frame.NewMetadata()
	md.SetAudit("source.Source", "data = Source(data)\n", frame.AuditOptions{WithHistory: true})
	md.SetAudit("xform.Transformer", "data = Transformer(data)\n", frame.AuditOptions{WithHistory: true})

	audit, _ := md.Get("audit")
	expected := "data = Source(data)\n" +
		"    <source.Source>\n" +
		"data = Transformer(data)\n" +
		"    <xform.Transformer>\n"
	assert.Equal(t, expected, audit)
}

func TestMergeAuditWrapsEachPart(t *testing.T) {
	y := frame.NewMetadata()
	y.SetAudit("io.Reader", "data = test.y\n", frame.AuditOptions{WithHistory: true})
	uv := frame.NewMetadata()
	uv.SetAudit("io.Reader", "data = test.uv\n", frame.AuditOptions{WithHistory: true})

	merged := frame.NewMetadata()
	merged.MergeAudit([]frame.AuditPart{
		{Name: "Y", Metadata: y},
		{Name: "UV", Metadata: uv},
	})
	merged.SetAudit("colour.YUVtoRGB", "data = YUVtoRGB(Y, UV)\n", frame.AuditOptions{WithHistory: true})

	audit, _ := merged.Get("audit")
	expected := "Y = {\n" +
		"    data = test.y\n" +
		"    <io.Reader>\n" +
		"    }\n" +
		"UV = {\n" +
		"    data = test.uv\n" +
		"    <io.Reader>\n" +
		"    }\n" +
		"data = YUVtoRGB(Y, UV)\n" +
		"    <colour.YUVtoRGB>\n"
	assert.Equal(t, expected, audit)
}

func TestMetadataCloneIsDeepCopy(t *testing.T) {
	orig := frame.NewMetadata()
	orig.Set("xlen", "640")
	orig.SetEmbedded("exif", []byte{0xff, 0xd8})

	clone := orig.Clone()
	clone.Set("xlen", "320")
	blob, _ := clone.Embedded("exif")
	blob[0] = 0x00

	origX, _ := orig.Get("xlen")
	assert.Equal(t, "640", origX, "mutating the clone must not affect the original")
	origBlob, _ := orig.Embedded("exif")
	assert.Equal(t, byte(0xff), origBlob[0])
}

func TestImageSizeRoundTrip(t *testing.T) {
	md := frame.NewMetadata()
	_, _, ok := md.ImageSize()
	assert.False(t, ok)

	md.Set("xlen", "720")
	md.Set("ylen", "576")
	w, h, ok := md.ImageSize()
	require.True(t, ok)
	assert.Equal(t, 720, w)
	assert.Equal(t, 576, h)
}

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.raw")

	md := frame.NewMetadata()
	md.Set("xlen", "720")
	md.Set("ylen", "576")
	md.Set("fourcc", "UYVY")
	require.NoError(t, md.ToFile(path))

	_, err := os.Stat(path + ".xmp")
	require.NoError(t, err)

	loaded, err := frame.NewMetadata().FromFile(path)
	require.NoError(t, err)
	x, _ := loaded.Get("xlen")
	y, _ := loaded.Get("ylen")
	fourcc, _ := loaded.Get("fourcc")
	assert.Equal(t, "720", x)
	assert.Equal(t, "576", y)
	assert.Equal(t, "UYVY", fourcc)
}

func TestFromFileMissingSidecarIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	md, err := frame.NewMetadata().FromFile(filepath.Join(dir, "missing.raw"))
	require.NoError(t, err)
	audit, ok := md.Get("audit")
	assert.True(t, ok)
	assert.Equal(t, "", audit)
}
