package e2e

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient reads back the points the engine's influx sink wrote.
type InfluxClient struct {
	org    string
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxClient connects to a running InfluxDB.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{org: org, bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// CountPoints counts rows of measurement written within since whose tags
// match every entry of tags.
func (c *InfluxClient) CountPoints(ctx context.Context, measurement string, tags map[string]string, since time.Duration) (int, error) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	preds := []string{fmt.Sprintf("r._measurement == %q", measurement)}
	for _, k := range keys {
		preds = append(preds, fmt.Sprintf("r.%s == %q", k, tags[k]))
	}
	flux := fmt.Sprintf(`from(bucket: %q) |> range(start: -%s) |> filter(fn: (r) => %s)`,
		c.bucket, since.String(), strings.Join(preds, " and "))

	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// EnsureBucket checks that the organisation and bucket exist, creating the
// bucket when the container was started without it.
func (c *InfluxClient) EnsureBucket(ctx context.Context) error {
	org, err := c.client.OrganizationsAPI().FindOrganizationByName(ctx, c.org)
	if err != nil {
		return fmt.Errorf("find org %s: %w", c.org, err)
	}
	buckets := c.client.BucketsAPI()
	if b, err := buckets.FindBucketByName(ctx, c.bucket); err == nil && b != nil {
		return nil
	}
	if _, err := buckets.CreateBucketWithName(ctx, org, c.bucket); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Close releases the underlying client resources.
func (c *InfluxClient) Close() { c.client.Close() }
