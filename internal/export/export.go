// Package export writes the order history as Parquet files partitioned by
// day, either under a local directory or to an S3 bucket.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/chrisdamba/menuflow/internal/cloudwriter"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

const fileName = "orders.parquet"

// OrderRow is the flattened order written to Parquet. Money is kept as
// decimal strings so no precision is lost.
type OrderRow struct {
	ID            string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TenantID      string `parquet:"name=tenant_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status        string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type          string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Origin        string `parquet:"name=origin, type=BYTE_ARRAY, convertedtype=UTF8"`
	CustomerName  string `parquet:"name=customer_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	ItemCount     int32  `parquet:"name=item_count, type=INT32"`
	Subtotal      string `parquet:"name=subtotal, type=BYTE_ARRAY, convertedtype=UTF8"`
	DiscountTotal string `parquet:"name=discount_total, type=BYTE_ARRAY, convertedtype=UTF8"`
	DeliveryFee   string `parquet:"name=delivery_fee, type=BYTE_ARRAY, convertedtype=UTF8"`
	Total         string `parquet:"name=total, type=BYTE_ARRAY, convertedtype=UTF8"`
	Cost          string `parquet:"name=cost, type=BYTE_ARRAY, convertedtype=UTF8"`
	PaymentMethod string `parquet:"name=payment_method, type=BYTE_ARRAY, convertedtype=UTF8"`
	CouponCode    string `parquet:"name=coupon_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	Rating        int32  `parquet:"name=rating, type=INT32"`
	CreatedAt     int64  `parquet:"name=created_at, type=INT64"`
	UpdatedAt     int64  `parquet:"name=updated_at, type=INT64"`
}

func NewOrderRow(o *models.Order) OrderRow {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	row := OrderRow{
		ID:            o.ID,
		TenantID:      o.TenantID,
		Status:        string(o.Status),
		Type:          string(o.Type),
		Origin:        o.Origin,
		CustomerName:  o.Customer.Name,
		ItemCount:     int32(count),
		Subtotal:      o.Subtotal.String(),
		DiscountTotal: o.DiscountTotal.String(),
		DeliveryFee:   o.DeliveryFee.String(),
		Total:         o.Total.String(),
		Cost:          o.Cost.String(),
		CouponCode:    o.CouponCode,
		CreatedAt:     o.CreatedAt.Unix(),
		UpdatedAt:     o.UpdatedAt.Unix(),
	}
	if len(o.Payments) > 0 {
		row.PaymentMethod = string(o.Payments[0].Method)
	}
	if o.Feedback != nil {
		row.Rating = int32(o.Feedback.Rating)
	}
	return row
}

// Result lists the files written, local paths or s3:// URLs.
type Result struct {
	Files []string
	Rows  int
}

type Exporter struct {
	settings models.ExportSettings
	factory  cloudwriter.CloudWriterFactory
	progress io.Writer
	log      logrus.FieldLogger
}

// NewExporter writes locally unless factory is set. progress receives a
// progress bar and may be nil.
func NewExporter(settings models.ExportSettings, factory cloudwriter.CloudWriterFactory, progress io.Writer, log logrus.FieldLogger) *Exporter {
	if progress == nil {
		progress = io.Discard
	}
	return &Exporter{settings: settings, factory: factory, progress: progress, log: log}
}

// Export writes orders into one file per creation day. Orders are written in
// creation order within each file.
func (e *Exporter) Export(ctx context.Context, orders []*models.Order) (*Result, error) {
	sorted := make([]*models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	bar := progressbar.NewOptions(len(sorted),
		progressbar.OptionSetWriter(e.progress),
		progressbar.OptionSetDescription("exporting orders"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	res := &Result{}
	for start := 0; start < len(sorted); {
		partition := PartitionPath(sorted[start].CreatedAt)
		end := start
		for end < len(sorted) && PartitionPath(sorted[end].CreatedAt) == partition {
			end++
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name, err := e.writePartition(partition, sorted[start:end], bar)
		if err != nil {
			return res, errors.Wrapf(err, "export partition %s", partition)
		}
		res.Files = append(res.Files, name)
		res.Rows += end - start
		start = end
	}
	_ = bar.Finish()

	e.log.WithFields(logrus.Fields{"rows": res.Rows, "files": len(res.Files)}).Info("orders exported")
	return res, nil
}

func (e *Exporter) writePartition(partition string, orders []*models.Order, bar *progressbar.ProgressBar) (string, error) {
	fw, name, err := e.create(partition)
	if err != nil {
		return "", err
	}
	pw, err := writer.NewParquetWriter(fw, new(OrderRow), 4)
	if err != nil {
		fw.Close()
		return "", errors.Wrap(err, "create parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, o := range orders {
		if err := pw.Write(NewOrderRow(o)); err != nil {
			fw.Close()
			return "", errors.Wrapf(err, "write order %s", o.ID)
		}
		_ = bar.Add(1)
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return "", errors.Wrap(err, "finish parquet file")
	}
	if err := fw.Close(); err != nil {
		return "", errors.Wrap(err, "close parquet file")
	}
	return name, nil
}

func (e *Exporter) create(partition string) (source.ParquetFile, string, error) {
	if e.factory != nil {
		key := path.Join(e.settings.Folder, partition, fileName)
		w, err := e.factory.NewWriter(e.settings.Bucket, key)
		if err != nil {
			return nil, "", errors.Wrap(err, "create cloud writer")
		}
		return newCloudParquetFile(w), fmt.Sprintf("s3://%s/%s", e.settings.Bucket, key), nil
	}

	dir := filepath.Join(e.settings.OutputPath, e.settings.Folder, filepath.FromSlash(partition))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, "", errors.Wrap(err, "create export directory")
	}
	name := filepath.Join(dir, fileName)
	fw, err := local.NewLocalFileWriter(name)
	if err != nil {
		return nil, "", errors.Wrap(err, "create local file writer")
	}
	return fw, name, nil
}

// PartitionPath is the Hive-style day partition of t in UTC.
func PartitionPath(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("year=%d/month=%02d/day=%02d", t.Year(), t.Month(), t.Day())
}
