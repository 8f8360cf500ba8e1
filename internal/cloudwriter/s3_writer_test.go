package cloudwriter

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	key, bucket string
	body        []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.key = aws.ToString(in.Key)
	f.bucket = aws.ToString(in.Bucket)
	data, err := io.ReadAll(in.Body)
	f.body = data
	return &s3.PutObjectOutput{}, err
}

func TestS3WriterUploadsOnClose(t *testing.T) {
	putter := &fakePutter{}
	w, err := NewS3WriterFactoryFrom(putter).NewWriter("exports", "orders/data.parquet")
	require.NoError(t, err)

	_, err = w.Write([]byte("PAR1"))
	require.NoError(t, err)
	_, err = w.Write([]byte("rest"))
	require.NoError(t, err)
	assert.Empty(t, putter.key, "nothing is uploaded before Close")

	require.NoError(t, w.Close())
	assert.Equal(t, "exports", putter.bucket)
	assert.Equal(t, "orders/data.parquet", putter.key)
	assert.Equal(t, "PAR1rest", string(putter.body))
}

func TestS3WriterRequiresBucket(t *testing.T) {
	_, err := NewS3WriterFactoryFrom(&fakePutter{}).NewWriter("", "x")
	assert.Error(t, err)
}
