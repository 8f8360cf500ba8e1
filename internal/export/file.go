package export

import (
	"io"

	"github.com/chrisdamba/menuflow/internal/cloudwriter"
	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go/source"
)

// cloudParquetFile lets the parquet writer stream into a cloud object. It
// only supports writing.
type cloudParquetFile struct {
	cloudWriter cloudwriter.CloudWriter
	offset      int64
}

func newCloudParquetFile(w cloudwriter.CloudWriter) *cloudParquetFile {
	return &cloudParquetFile{cloudWriter: w}
}

func (c *cloudParquetFile) Open(string) (source.ParquetFile, error) {
	return c, nil
}

func (c *cloudParquetFile) Create(string) (source.ParquetFile, error) {
	return c, nil
}

func (c *cloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	case io.SeekEnd:
		return 0, errors.New("seek from end not supported for cloud storage")
	}
	return c.offset, nil
}

func (c *cloudParquetFile) Read([]byte) (int, error) {
	return 0, errors.New("read not supported for cloud storage")
}

func (c *cloudParquetFile) Write(p []byte) (int, error) {
	n, err := c.cloudWriter.Write(p)
	c.offset += int64(n)
	return n, err
}

func (c *cloudParquetFile) Close() error {
	return c.cloudWriter.Close()
}
