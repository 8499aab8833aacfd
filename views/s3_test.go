package views

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects of a single bucket in memory and lists
// them one per page.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	keys    []string

	contentTypes map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:      make(map[string]string),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	text, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(text))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	key := aws.ToString(params.Key)
	if _, ok := f.objects[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.objects[key] = string(b)
	f.contentTypes[key] = aws.ToString(params.ContentType)

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matching []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(params.Prefix)) {
			matching = append(matching, k)
		}
	}

	start := 0
	if params.ContinuationToken != nil {
		for i, k := range matching {
			if k == *params.ContinuationToken {
				start = i + 1
			}
		}
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if start < len(matching) {
		out.Contents = []types.Object{{Key: aws.String(matching[start])}}
	}
	if start+1 < len(matching) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(matching[start])
	}

	return out, nil
}

func TestS3Resources(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.keys = append(fake.keys, "other/unrelated.html")
	fake.objects["other/unrelated.html"] = "x"

	res := NewS3Resources(fake, "rockstars", "views")

	require.NoError(t, res.Write(ctx, "Rockstars.html", "<p>all</p>"))
	require.NoError(t, res.Write(ctx, "stars/dead/cobain/Content.md", "kurt"))
	require.NoError(t, res.Write(ctx, "stars/dead/cobain/default.html", "{{ .Content }}"))

	assert.Equal(t, "text/markdown; charset=utf-8", fake.contentTypes["views/stars/dead/cobain/Content.md"])

	names, err := res.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Rockstars.html",
		"stars/dead/cobain/Content.md",
		"stars/dead/cobain/default.html",
	}, names)

	text, err := res.Read(ctx, "stars/dead/cobain/Content.md")
	require.NoError(t, err)
	assert.Equal(t, "kurt", text)

	_, err = res.Read(ctx, "missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
}
